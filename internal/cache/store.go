package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/serialmirror/internal/fsutil"
)

var (
	// ErrNotFound is returned by Read when no entry exists for an id.
	ErrNotFound = errors.New("cache entry not found")

	// ErrInvalidID is returned for ids that cannot be used as a file name.
	ErrInvalidID = errors.New("invalid cache id")
)

// Extension is appended to every page id to form its cache file name.
const Extension = ".html"

// Store is the behavior the crawl engine and formatter need from the cache.
type Store interface {
	Exists(id string) bool
	Read(id string) ([]byte, error)
	Write(id string, content []byte) error
	Path(id string) string
}

// FileStore is a Store backed by a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. The directory is created
// lazily on the first Write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path for id. It does not check existence.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+Extension)
}

// Exists reports whether an entry for id is present.
func (s *FileStore) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	info, err := os.Stat(s.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the cached content for id, or ErrNotFound.
func (s *FileStore) Read(id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", id, err)
	}
	return data, nil
}

// Write stores content under id, replacing any previous entry.
func (s *FileStore) Write(id string, content []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.Path(id), content, 0o600); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", id, err)
	}
	return nil
}

// IDs lists the ids present in the store, sorted. A missing directory
// yields an empty list.
func (s *FileStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != Extension {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, Extension))
	}
	sort.Strings(ids)
	return ids, nil
}

// Size returns the size in bytes of the entry for id.
func (s *FileStore) Size(id string) (int64, error) {
	info, err := os.Stat(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
