package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tempPrefix = ".tmp-"

// FS stores records as files under a root directory:
// <root>/<day>/<category>/<file> and <root>/state/<file>.
type FS struct {
	root string
}

// NewFS creates the root directory if needed and returns a store over it.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("store: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("store: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

func (f *FS) dir(p Partition) string {
	if p.Category == CategoryState {
		return filepath.Join(f.root, string(CategoryState))
	}
	return filepath.Join(f.root, p.Day, string(p.Category))
}

// Path resolves key to its absolute file path.
func (f *FS) Path(key Key) (string, error) {
	name, err := key.filename()
	if err != nil {
		return "", err
	}
	return filepath.Join(f.dir(key.Partition), name), nil
}

// Read returns the record for key. An absent record yields ok == false
// and a nil error.
func (f *FS) Read(key Key) (data []byte, ok bool, err error) {
	path, err := f.Path(key)
	if err != nil {
		return nil, false, err
	}
	data, err = os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read %s: %w", key, err)
	}
	return data, true, nil
}

// Exists reports whether a record is present for key.
func (f *FS) Exists(key Key) (bool, error) {
	path, err := f.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: stat %s: %w", key, err)
	}
	return true, nil
}

// Write atomically replaces the record: temp file in the same directory,
// fsync, rename. Readers see either the previous or the new value.
func (f *FS) Write(key Key, data []byte) error {
	path, err := f.Path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	success = true
	syncDir(dir)
	return nil
}

// ListKeys returns the keys present in a partition, ordered by index with
// the overall record last. Temp files and foreign files are ignored.
func (f *FS) ListKeys(p Partition) ([]Key, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list %s/%s: %w", p.Day, p.Category, err)
	}

	var keys []Key
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		if key, ok := keyFromFilename(p, entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return sortIndex(keys[i]) < sortIndex(keys[j])
	})
	return keys, nil
}

func sortIndex(k Key) int {
	if k.IsOverall() {
		return int(^uint(0) >> 1)
	}
	return k.Index
}

// syncDir makes the rename durable where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
