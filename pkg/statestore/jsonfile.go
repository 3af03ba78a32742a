package statestore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// DefaultFileName is the state file kept in the project's .arbor directory.
const DefaultFileName = "tree-state.json"

// stateFile is the on-disk format:
//
//	{
//	  "version": 1,
//	  "trees": {
//	    "main": {"saved_at": "...", "state": {"open": [...], "selected": [...], "scroll": {...}}}
//	  }
//	}
type stateFile struct {
	Version int              `json:"version"`
	Trees   map[string]Entry `json:"trees"`
}

// JSONFile keeps one snapshot per key in a single versioned JSON file. A
// missing file means nothing is saved; a corrupt one is logged and treated
// as empty.
type JSONFile struct {
	Path string
	Now  func() time.Time

	mu sync.Mutex
}

// NewJSONFile creates a store backed by path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{Path: path, Now: time.Now}
}

func (j *JSONFile) read() (*stateFile, error) {
	sf := &stateFile{Version: Version, Trees: map[string]Entry{}}
	data, err := os.ReadFile(j.Path)
	if os.IsNotExist(err) {
		return sf, nil
	}
	if err != nil {
		return nil, err
	}
	var onDisk stateFile
	if err := json.Unmarshal(data, &onDisk); err != nil {
		slog.Warn("warning: invalid tree state file, using defaults", slog.String("path", j.Path), slog.String("error", err.Error()))
		return sf, nil
	}
	if onDisk.Version > Version {
		return nil, fmt.Errorf("%w: %s has version %d", ErrUnsupportedVersion, j.Path, onDisk.Version)
	}
	if onDisk.Trees != nil {
		sf.Trees = onDisk.Trees
	}
	return sf, nil
}

func (j *JSONFile) write(sf *stateFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tree state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.Path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := j.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write tree state: %w", err)
	}
	return os.Rename(tmp, j.Path)
}

// Save implements Store.
func (j *JSONFile) Save(key string, s tree.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	sf, err := j.read()
	if err != nil {
		return err
	}
	sf.Trees[key] = Entry{SavedAt: j.Now().UTC(), State: s}
	return j.write(sf)
}

// Load implements Store.
func (j *JSONFile) Load(key string) (tree.Snapshot, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	sf, err := j.read()
	if err != nil {
		return tree.Snapshot{}, false, err
	}
	e, ok := sf.Trees[key]
	return e.State, ok, nil
}

// Delete implements Store.
func (j *JSONFile) Delete(key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	sf, err := j.read()
	if err != nil {
		return err
	}
	if _, ok := sf.Trees[key]; !ok {
		return nil
	}
	delete(sf.Trees, key)
	return j.write(sf)
}

// Close implements Store.
func (j *JSONFile) Close() error { return nil }
