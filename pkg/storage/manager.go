package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind selects one of the per-target file families under the data directory
type Kind string

const (
	KindCheckpoint Kind = "checkpoints"
	KindArchive    Kind = "archives"
)

func (k Kind) suffix() string {
	if k == KindCheckpoint {
		return ".checkpoint.json"
	}
	return ".json"
}

// Manager owns the on-disk layout and performs atomic file replacement
type Manager struct {
	baseDir string
	version string
}

// NewManager creates a storage manager rooted at baseDir.
// version, when set, is appended to every file name so that several
// independent archives of the same target can coexist.
func NewManager(baseDir, version string) (*Manager, error) {
	if baseDir == "" {
		return nil, errors.New("storage base directory is required")
	}
	if strings.ContainsAny(version, `/\`) {
		return nil, fmt.Errorf("invalid storage version %q", version)
	}

	for _, kind := range []Kind{KindCheckpoint, KindArchive} {
		if err := os.MkdirAll(filepath.Join(baseDir, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", kind, err)
		}
	}

	return &Manager{baseDir: baseDir, version: version}, nil
}

// BaseDir returns the data directory
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Path returns the file that holds kind for the given target key
func (m *Manager) Path(kind Kind, key string) string {
	name := SanitizeKey(key)
	if m.version != "" {
		name += "_" + m.version
	}
	return filepath.Join(m.baseDir, string(kind), name+kind.suffix())
}

// Read returns the contents of path. A missing file yields an error
// matching fs.ErrNotExist.
func (m *Manager) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// WriteAtomic replaces path with data. Readers observe either the old or the
// new content, never a partial file.
func (m *Manager) WriteAtomic(path string, data []byte) error {
	return WriteFile(path, data, 0644)
}

// WriteFile atomically replaces path with data: it writes a temporary file in
// the same directory, fsyncs it and renames it over path.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}

// Exists reports whether path exists
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes path. Removing a missing file is not an error.
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Copy duplicates src to dst atomically
func (m *Manager) Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	return m.WriteAtomic(dst, data)
}

// Keys lists the target keys that have a file of the given kind
func (m *Manager) Keys(kind Kind) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.baseDir, string(kind)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	tail := kind.suffix()
	if m.version != "" {
		tail = "_" + m.version + tail
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, tail) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, tail))
	}

	sort.Strings(keys)
	return keys, nil
}

// SanitizeKey maps a target identifier to a safe file name component
func SanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}
