// Package bolt stores scratch slots in an embedded bbolt database.
package bolt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/aretw0/inkwell/pkg/core"
)

var bucket = []byte("scratch")

// Store implements core.ScratchStore.
type Store struct {
	db *bolt.DB
}

// Open opens the database file at path, waiting up to a second for another
// process holding the lock.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, key string) (string, error) {
	var (
		content string
		found   bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		// Seek rather than Get: an empty value must still count as present.
		k, v := tx.Bucket(bucket).Cursor().Seek([]byte(key))
		if k == nil || !bytes.Equal(k, []byte(key)) {
			return nil
		}
		content, found = string(v), true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read scratch: %w", err)
	}
	if !found {
		return "", core.ErrNotFound
	}
	return content, nil
}

func (s *Store) Save(ctx context.Context, key, content string) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), []byte(content))
	}); err != nil {
		return fmt.Errorf("failed to save scratch: %w", err)
	}
	return nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ core.ScratchStore = (*Store)(nil)
