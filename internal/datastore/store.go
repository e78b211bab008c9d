// Package datastore holds the data blocks this node has agreed to store,
// keyed by data id.
package datastore

import (
	"bytes"
	"errors"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sahabi/morphis/internal/crypto"
)

const fileName = "data.db"

var bucketBlocks = []byte("blocks")

var ErrIDMismatch = errors.New("datastore: data_id does not match data")

// Store is a content-addressed block store backed by bbolt.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) the block database inside dir.
func New(dir string) (*Store, error) {
	db, err := bolt.Open(filepath.Join(dir, fileName), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlocks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores data under id. id must equal crypto.DataID(data).
func (s *Store) Put(id, data []byte) error {
	if !bytes.Equal(id, crypto.DataID(data)) {
		return ErrIDMismatch
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(id, data)
	})
}

// Get returns a copy of the block stored under id.
func (s *Store) Get(id []byte) ([]byte, bool) {
	var out []byte
	s.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		if v := tx.Bucket(bucketBlocks).Get(id); v != nil {
			// bbolt values are only valid inside the transaction.
			out = append([]byte{}, v...)
		}
		return nil
	})
	return out, out != nil
}

func (s *Store) Has(id []byte) bool {
	found := false
	s.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		found = tx.Bucket(bucketBlocks).Get(id) != nil
		return nil
	})
	return found
}

func (s *Store) Len() int {
	n := 0
	s.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		n = tx.Bucket(bucketBlocks).Stats().KeyN
		return nil
	})
	return n
}
