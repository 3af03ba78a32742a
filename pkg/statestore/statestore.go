// Package statestore persists tree state snapshots (open nodes, selection,
// scroll position) between sessions.
package statestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// Version is the current on-disk schema version.
const Version = 1

// ErrUnsupportedVersion is returned for files written by a newer schema.
var ErrUnsupportedVersion = errors.New("unsupported state version")

// Entry is one saved snapshot.
type Entry struct {
	ID      string        `json:"id,omitempty"`
	SavedAt time.Time     `json:"saved_at"`
	State   tree.Snapshot `json:"state"`
}

// Store saves snapshots under a tree key. Load reports false when nothing
// usable is stored.
type Store interface {
	Save(key string, s tree.Snapshot) error
	Load(key string) (tree.Snapshot, bool, error)
	Delete(key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON = "json"
	BackendBolt = "bolt"
)

// Open creates the store for a configured backend. ttl applies to the bolt
// backend only.
func Open(backend, path string, ttl time.Duration) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONFile(path), nil
	case BackendBolt:
		return OpenBolt(path, BoltOptions{TTL: ttl})
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// Capture saves the current state of t under key.
func Capture(s Store, key string, t *tree.Tree) error {
	return s.Save(key, t.GetState())
}

// Restore replays the snapshot stored under key onto t. done reports
// whether a snapshot was found and applied; it may be nil.
func Restore(s Store, key string, t *tree.Tree, done func(ok bool)) error {
	if done == nil {
		done = func(bool) {}
	}
	snap, ok, err := s.Load(key)
	if err != nil || !ok {
		done(false)
		return err
	}
	t.SetState(snap, done)
	return nil
}
