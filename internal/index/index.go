package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/nao1215/serialmirror/internal/fsutil"
	"github.com/nao1215/serialmirror/internal/model"
)

var (
	// ErrCorrupt is returned by Load when the index file cannot be decoded.
	ErrCorrupt = errors.New("index file is corrupt")

	// ErrRecordNotFound is returned when an explicit id is not in the index.
	ErrRecordNotFound = errors.New("record not found in index")

	// ErrNoStartURL is returned by ResumePoint when the index is empty and
	// no start URL was configured.
	ErrNoStartURL = errors.New("index is empty and no start url is configured")
)

// Index is the in-memory view of the series index file. It is safe for
// concurrent use.
type Index struct {
	mu      sync.RWMutex
	path    string
	records []model.PageRecord
	pos     map[string]int
}

// New returns an empty index that will be saved to path.
func New(path string) *Index {
	return &Index{path: path, pos: make(map[string]int)}
}

// Load reads the index at path. A missing file yields an empty index;
// content other than a JSON array is ErrCorrupt.
// Duplicate ids keep the position of their first occurrence and the
// content of their last.
func Load(path string) (*Index, error) {
	idx := New(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %s: expected a JSON array", ErrCorrupt, path)
	}

	var records []model.PageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: entry %d: %w", ErrCorrupt, path, i, err)
		}
		idx.upsertLocked(r)
	}
	return idx, nil
}

// Path returns the file the index is saved to.
func (x *Index) Path() string {
	return x.path
}

// Len returns the number of records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Records returns a copy of the records in discovery order.
func (x *Index) Records() []model.PageRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]model.PageRecord, len(x.records))
	copy(out, x.records)
	return out
}

// Find returns the record with the given id.
func (x *Index) Find(id string) (model.PageRecord, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.pos[id]
	if !ok {
		return model.PageRecord{}, false
	}
	return x.records[i], true
}

// Upsert replaces the record with the same id in place, or appends it.
// It reports whether an existing record was replaced.
func (x *Index) Upsert(r model.PageRecord) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.upsertLocked(r), nil
}

func (x *Index) upsertLocked(r model.PageRecord) bool {
	if i, ok := x.pos[r.ID]; ok {
		x.records[i] = r
		return true
	}
	x.pos[r.ID] = len(x.records)
	x.records = append(x.records, r)
	return false
}

// Update applies fn to the record with the given id and stores the result
// in place. It returns ErrRecordNotFound when id is unknown. fn must not
// change the id.
func (x *Index) Update(id string, fn func(*model.PageRecord)) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	i, ok := x.pos[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	r := x.records[i]
	fn(&r)
	if r.ID != id {
		return fmt.Errorf("update of %s changed its id to %s", id, r.ID)
	}
	x.records[i] = r
	return nil
}

// ResumePoint returns the URL a crawl should start from.
//
// With explicitID set, the URL of that record is returned. Otherwise the
// URL of the second-to-last record is returned (the only record when
// there is one), and startURL when the index is empty.
func (x *Index) ResumePoint(explicitID, startURL string) (string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if explicitID != "" {
		i, ok := x.pos[explicitID]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrRecordNotFound, explicitID)
		}
		return x.records[i].URL, nil
	}

	switch n := len(x.records); n {
	case 0:
		if startURL == "" {
			return "", ErrNoStartURL
		}
		return startURL, nil
	case 1:
		return x.records[0].URL, nil
	default:
		return x.records[n-2].URL, nil
	}
}

// Marshal returns the indented JSON encoding of the index.
func (x *Index) Marshal() ([]byte, error) {
	x.mu.RLock()
	records := x.records
	if records == nil {
		records = []model.PageRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	x.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the index to its path atomically.
func (x *Index) Save() error {
	data, err := x.Marshal()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(x.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}
