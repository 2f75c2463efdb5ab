package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"strings"

	"igarchive/pkg/codec"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/storage"
)

// DefaultIDField is the record field used as identity when none is configured
const DefaultIDField = "id"

// Store loads, merges and saves the accumulated records of each target
type Store struct {
	storage *storage.Manager
	codec   *codec.Codec
	idField string
	logger  logger.Logger
}

// NewStore creates an archive store. idField names the record identity field.
func NewStore(sm *storage.Manager, c *codec.Codec, idField string, log logger.Logger) *Store {
	if c == nil {
		c = codec.Default()
	}
	if idField == "" {
		idField = DefaultIDField
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		storage: sm,
		codec:   c,
		idField: idField,
		logger:  log.WithField("component", "archive"),
	}
}

// Path returns the archive file for key
func (s *Store) Path(key string) string {
	return s.storage.Path(storage.KindArchive, key)
}

// IDField returns the configured identity field
func (s *Store) IDField() string {
	return s.idField
}

// Load returns the saved records for key, or an empty archive when none
// exists. Anything other than a JSON array of objects is a fatal error so
// that an unreadable archive is never overwritten.
func (s *Store) Load(key string) ([]models.Record, error) {
	path := s.Path(key)

	data, err := s.storage.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Record{}, nil
		}
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to read archive for %q", key)
	}

	text, used := s.codec.DecodeText(data)
	if used != "utf-8" {
		s.logger.WarnWithFields("Archive is not UTF-8, decoded with fallback encoding", map[string]interface{}{
			"target":   key,
			"encoding": used,
		})
	}

	var raw []any
	if err := codec.Unmarshal(strings.NewReader(text), &raw); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "archive for %q is corrupt (%s)", key, path)
	}
	if raw == nil {
		return nil, errs.New(errs.ErrorTypeStorage, 0, "archive for %q is corrupt: top-level value is not an array", key)
	}

	records := make([]models.Record, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, errs.New(errs.ErrorTypeStorage, 0, "archive for %q is corrupt: element %d is not an object", key, i)
		}
		records = append(records, models.Record(obj))
	}

	s.logger.DebugWithFields("Archive loaded", map[string]interface{}{
		"target":  key,
		"records": len(records),
	})

	return records, nil
}

// Save atomically replaces the archive for key
func (s *Store) Save(key string, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}

	data, err := s.codec.Encode(records)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to encode archive for %q", key)
	}

	if err := s.storage.WriteAtomic(s.Path(key), data); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to save archive for %q", key)
	}

	s.logger.DebugWithFields("Archive saved", map[string]interface{}{
		"target":  key,
		"records": len(records),
		"bytes":   len(data),
	})

	return nil
}

// Delete removes the archive for key
func (s *Store) Delete(key string) error {
	if err := s.storage.Remove(s.Path(key)); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to delete archive for %q", key)
	}
	s.logger.InfoWithFields("Archive deleted", map[string]interface{}{"target": key})
	return nil
}

// Exists checks if an archive file exists for key
func (s *Store) Exists(key string) bool {
	return s.storage.Exists(s.Path(key))
}

// Merge appends the incoming records whose identity is not already present.
// Existing order is kept, new records follow in page order, and duplicates
// inside incoming collapse to their first occurrence. Neither input is
// modified.
func (s *Store) Merge(existing, incoming []models.Record) (merged []models.Record, added int) {
	return Merge(s.codec, s.idField, existing, incoming)
}

// Merge is the store-independent form of Store.Merge
func Merge(c *codec.Codec, idField string, existing, incoming []models.Record) ([]models.Record, int) {
	if c == nil {
		c = codec.Default()
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]models.Record, 0, len(existing)+len(incoming))

	for _, r := range existing {
		seen[Identity(c, idField, r)] = struct{}{}
		merged = append(merged, r)
	}

	added := 0
	for _, r := range incoming {
		key := Identity(c, idField, r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, r)
		added++
	}

	return merged, added
}

// Identity returns the dedup key of r: "id:<value>" when the identity field
// is present, otherwise "sha256:<digest>" of the record's canonical encoding.
func Identity(c *codec.Codec, idField string, r models.Record) string {
	if id, ok := r.ID(idField); ok {
		return "id:" + id
	}

	// encoding/json sorts map keys, so equal records hash equally
	data, err := c.Encode(r)
	if err != nil {
		return "unencodable"
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
