package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"igarchive/pkg/codec"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/storage"
)

// State is the durable resume position for one target
type State struct {
	AfterCursor     *string   `json:"after_cursor"`
	CumulativeCount int       `json:"cumulative_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsInitial reports whether no batch has been checkpointed yet
func (s *State) IsInitial() bool {
	return s.AfterCursor == nil && s.CumulativeCount == 0 && s.UpdatedAt.IsZero()
}

// Store persists one State per target key
type Store struct {
	storage *storage.Manager
	codec   *codec.Codec
	logger  logger.Logger
}

// NewStore creates a checkpoint store on top of a storage manager
func NewStore(sm *storage.Manager, c *codec.Codec, log logger.Logger) *Store {
	if c == nil {
		c = codec.Default()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		storage: sm,
		codec:   c,
		logger:  log.WithField("component", "checkpoint"),
	}
}

// Path returns the checkpoint file for key
func (s *Store) Path(key string) string {
	return s.storage.Path(storage.KindCheckpoint, key)
}

// Load returns the saved state for key. A missing checkpoint yields the
// initial state; an unreadable one is a fatal storage error.
func (s *Store) Load(key string) (*State, error) {
	path := s.Path(key)

	data, err := s.storage.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.DebugWithFields("No checkpoint, starting from the beginning", map[string]interface{}{
				"target": key,
			})
			return &State{}, nil
		}
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to read checkpoint for %q", key)
	}

	var state State
	if err := s.codec.DecodeInto(data, &state); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "checkpoint for %q is corrupt (%s)", key, path)
	}
	if state.CumulativeCount < 0 {
		return nil, errs.New(errs.ErrorTypeStorage, 0, "checkpoint for %q is corrupt: negative cumulative_count", key)
	}
	if state.AfterCursor != nil {
		state.AfterCursor = models.Cursor(*state.AfterCursor)
	}

	s.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"target":           key,
		"after_cursor":     state.AfterCursor,
		"cumulative_count": state.CumulativeCount,
		"updated_at":       state.UpdatedAt,
	})

	return &state, nil
}

// Save atomically replaces the checkpoint for key
func (s *Store) Save(key string, state *State) error {
	if state == nil {
		return errs.New(errs.ErrorTypeStorage, 0, "refusing to save nil checkpoint for %q", key)
	}
	if state.CumulativeCount < 0 {
		return errs.New(errs.ErrorTypeStorage, 0, "refusing to save negative cumulative_count for %q", key)
	}

	out := *state
	out.UpdatedAt = out.UpdatedAt.UTC()
	if out.AfterCursor != nil {
		out.AfterCursor = models.Cursor(*out.AfterCursor)
	}

	data, err := s.codec.Encode(&out)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to encode checkpoint for %q", key)
	}

	if err := s.storage.WriteAtomic(s.Path(key), data); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to save checkpoint for %q", key)
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"target":           key,
		"after_cursor":     out.AfterCursor,
		"cumulative_count": out.CumulativeCount,
	})

	return nil
}

// Delete removes the checkpoint for key
func (s *Store) Delete(key string) error {
	if err := s.storage.Remove(s.Path(key)); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to delete checkpoint for %q", key)
	}

	s.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{"target": key})
	return nil
}

// Exists checks if a checkpoint file exists for key
func (s *Store) Exists(key string) bool {
	return s.storage.Exists(s.Path(key))
}

// Backup copies the checkpoint for key next to it with a .backup suffix and
// returns the backup path. It is a no-op returning "" when nothing is saved.
func (s *Store) Backup(key string) (string, error) {
	if !s.Exists(key) {
		return "", nil
	}

	backupPath := s.Path(key) + ".backup"
	if err := s.storage.Copy(s.Path(key), backupPath); err != nil {
		return "", errs.Wrap(errs.ErrorTypeStorage, err, "failed to back up checkpoint for %q", key)
	}

	s.logger.DebugWithFields("Checkpoint backed up", map[string]interface{}{
		"target": key,
		"path":   backupPath,
	})
	return backupPath, nil
}

// Targets lists the keys that currently have a checkpoint
func (s *Store) Targets() ([]string, error) {
	keys, err := s.storage.Keys(storage.KindCheckpoint)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to list checkpoints")
	}
	return keys, nil
}

// Age returns how long ago the state was last updated
func (s *State) Age(now time.Time) time.Duration {
	if s.UpdatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.UpdatedAt)
}

// String renders a short summary for logs
func (s *State) String() string {
	return fmt.Sprintf("cursor=%s count=%d", models.CursorString(s.AfterCursor), s.CumulativeCount)
}
