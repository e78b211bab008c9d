// Package directory persists the peers this node has learned about.
//
// Records arrive in PeerList messages and are stored keyed by node id. A
// record is only accepted if its public key parses and hashes to its node
// id, so a peer cannot claim a position on the ring it does not own.
package directory

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sahabi/morphis/internal/crypto"
	"github.com/sahabi/morphis/internal/protocol"
)

const fileName = "peers.db"

var bucketPeers = []byte("peers")

var (
	ErrInvalidPubKey  = errors.New("directory: invalid pubkey")
	ErrNodeIDMismatch = errors.New("directory: node_id does not match pubkey")
	ErrNoAddress      = errors.New("directory: empty address")
)

// entry is the stored form. Seen is when the record was last added.
type entry struct {
	protocol.PeerRecord
	Seen int64 `json:"seen"`
}

// Directory is a persistent peer store backed by bbolt.
type Directory struct {
	db *bolt.DB
}

// New opens (or creates) the peer database inside dir.
func New(dir string) (*Directory, error) {
	db, err := bolt.Open(filepath.Join(dir, fileName), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPeers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Directory{db: db}, nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

// Validate checks that rec is internally consistent.
func Validate(rec protocol.PeerRecord) error {
	if rec.Address == "" {
		return ErrNoAddress
	}
	if _, err := crypto.ParsePublicBytes(rec.PubKey); err != nil {
		return ErrInvalidPubKey
	}
	if !crypto.VerifyNodeID(rec.NodeID, rec.PubKey) {
		return ErrNodeIDMismatch
	}
	return nil
}

// Add inserts or refreshes a record after validating it.
func (d *Directory) Add(rec protocol.PeerRecord) error {
	if err := Validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(entry{PeerRecord: rec, Seen: time.Now().Unix()})
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).Put(rec.NodeID, data)
	})
}

// Lookup finds a record by node id. Returns false if unknown.
func (d *Directory) Lookup(nodeID []byte) (protocol.PeerRecord, bool) {
	var e entry
	found := false
	d.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		data := tx.Bucket(bucketPeers).Get(nodeID)
		if data == nil {
			return nil
		}
		if json.Unmarshal(data, &e) == nil {
			found = true
		}
		return nil
	})
	return e.PeerRecord, found
}

// Remove deletes a record. Removing an unknown id is not an error.
func (d *Directory) Remove(nodeID []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeers).Delete(nodeID)
	})
}

// All returns every record ordered by node id.
func (d *Directory) All() []protocol.PeerRecord {
	var out []protocol.PeerRecord
	d.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		return tx.Bucket(bucketPeers).ForEach(func(_, v []byte) error {
			var e entry
			if json.Unmarshal(v, &e) == nil {
				out = append(out, e.PeerRecord)
			}
			return nil
		})
	})
	return out
}

func (d *Directory) Len() int {
	n := 0
	d.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		n = tx.Bucket(bucketPeers).Stats().KeyN
		return nil
	})
	return n
}
