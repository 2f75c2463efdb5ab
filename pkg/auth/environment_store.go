package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads a single credential from IGARCHIVE_* variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve builds a credential from IGARCHIVE_TOKEN, IGARCHIVE_SESSION_ID,
// IGARCHIVE_CSRF_TOKEN and IGARCHIVE_USER_AGENT. The name defaults to "env".
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	cred := &Credential{
		Name:         name,
		Token:        os.Getenv("IGARCHIVE_TOKEN"),
		SessionID:    os.Getenv("IGARCHIVE_SESSION_ID"),
		CSRFToken:    os.Getenv("IGARCHIVE_CSRF_TOKEN"),
		UserAgent:    os.Getenv("IGARCHIVE_USER_AGENT"),
		LastModified: time.Now(),
	}
	if cred.Name == "" {
		cred.Name = "env"
	}

	if cred.Token == "" && cred.SessionID == "" {
		return nil, ErrCredentialsNotFound
	}
	return cred, nil
}

// List returns the environment credential when one is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials are set
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
