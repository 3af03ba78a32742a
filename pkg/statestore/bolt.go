package statestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	bbolt "go.etcd.io/bbolt"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

var snapshotsBucket = []byte("snapshots")

// DefaultKeep is how many snapshots per key the bolt store retains.
const DefaultKeep = 5

// BoltOptions configures a Bolt store.
type BoltOptions struct {
	// TTL expires snapshots older than this on Load and Save. Zero keeps
	// them forever.
	TTL time.Duration
	// Keep bounds the history per key; DefaultKeep if 0.
	Keep int
	Now  func() time.Time
}

// Bolt keeps a short history of snapshots per key in a bbolt database:
// bucket "snapshots" holds one sub-bucket per tree key, entries keyed by
// ULID so cursor order is save order.
type Bolt struct {
	db   *bbolt.DB
	opts BoltOptions
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path string, opts BoltOptions) (*Bolt, error) {
	if opts.Keep <= 0 {
		opts.Keep = DefaultKeep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &Bolt{db: db, opts: opts}, nil
}

func (b *Bolt) expired(e Entry) bool {
	return b.opts.TTL > 0 && b.opts.Now().Sub(e.SavedAt) > b.opts.TTL
}

// Save implements Store. It appends a snapshot and prunes expired entries
// and entries beyond the history bound.
func (b *Bolt) Save(key string, s tree.Snapshot) error {
	now := b.opts.Now().UTC()
	e := Entry{
		ID:      ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		SavedAt: now,
		State:   s,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(snapshotsBucket).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(e.ID), data); err != nil {
			return err
		}
		return b.prune(bucket)
	})
}

func (b *Bolt) prune(bucket *bbolt.Bucket) error {
	var drop [][]byte
	kept := 0
	c := bucket.Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil || b.expired(e) || kept >= b.opts.Keep {
			drop = append(drop, append([]byte(nil), k...))
			continue
		}
		kept++
	}
	for _, k := range drop {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Load implements Store: the newest unexpired snapshot wins.
func (b *Bolt) Load(key string) (tree.Snapshot, bool, error) {
	entries, err := b.History(key)
	if err != nil || len(entries) == 0 {
		return tree.Snapshot{}, false, err
	}
	return entries[0].State, true, nil
}

// History returns the unexpired snapshots of key, newest first.
func (b *Bolt) History(key string) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(snapshotsBucket).Bucket([]byte(key))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue // Skip invalid entries
			}
			if b.expired(e) {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Delete implements Store.
func (b *Bolt) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(snapshotsBucket).DeleteBucket([]byte(key))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Close implements Store.
func (b *Bolt) Close() error {
	return b.db.Close()
}
