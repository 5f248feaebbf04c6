package persist

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const (
	dbName           = "signer.db"
	dbFilePermission = 0600
)

var (
	nodeBucket     = []byte("node")
	seedKey        = []byte("seed")
	channelsBucket = []byte("channels") // nested per-node bucket holds per-channel keys
	allowlistKey   = []byte("allowlist")
)

// BboltPersister stores node and channel state as JSON values in a bbolt
// database file, mirroring the bucket-per-concern layout a channeldb-style
// store uses.
type BboltPersister struct {
	db *bolt.DB
}

// OpenBboltPersister opens (creating if necessary) a bbolt-backed persister
// rooted at dbDir.
func OpenBboltPersister(dbDir string) (*BboltPersister, error) {
	if err := os.MkdirAll(dbDir, 0700); err != nil {
		return nil, fmt.Errorf("persist: creating db directory: %w", err)
	}

	path := filepath.Join(dbDir, dbName)
	db, err := bolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, fmt.Errorf("persist: opening bbolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(nodeBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(channelsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: initializing buckets: %w", err)
	}

	return &BboltPersister{db: db}, nil
}

func (p *BboltPersister) NodeSeed(newSeed func() ([32]byte, error)) ([32]byte, error) {
	var seed [32]byte

	err := p.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(nodeBucket)
		if existing := bucket.Get(seedKey); existing != nil {
			copy(seed[:], existing)
			return nil
		}

		var err error
		if newSeed != nil {
			seed, err = newSeed()
		} else {
			_, err = rand.Read(seed[:])
		}
		if err != nil {
			return err
		}

		return bucket.Put(seedKey, seed[:])
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("persist: loading node seed: %w", err)
	}

	return seed, nil
}

func (p *BboltPersister) nodeChannelsBucket(tx *bolt.Tx, nodeID string, create bool) (*bolt.Bucket, error) {
	root := tx.Bucket(channelsBucket)
	if create {
		return root.CreateBucketIfNotExists([]byte(nodeID))
	}
	bucket := root.Bucket([]byte(nodeID))
	if bucket == nil {
		return nil, fmt.Errorf("persist: no channels persisted for node %s", nodeID)
	}
	return bucket, nil
}

func (p *BboltPersister) PutChannel(nodeID string, rec *ChannelRecord) error {
	raw, err := marshalRecord(rec)
	if err != nil {
		return err
	}

	return p.db.Update(func(tx *bolt.Tx) error {
		bucket, err := p.nodeChannelsBucket(tx, nodeID, true)
		if err != nil {
			return err
		}
		return bucket.Put(channelKey(rec.Nonce), raw)
	})
}

func (p *BboltPersister) GetChannel(nodeID string, nonce []byte) (*ChannelRecord, error) {
	var rec *ChannelRecord

	err := p.db.View(func(tx *bolt.Tx) error {
		bucket, err := p.nodeChannelsBucket(tx, nodeID, false)
		if err != nil {
			return err
		}
		raw := bucket.Get(channelKey(nonce))
		if raw == nil {
			return fmt.Errorf("persist: no channel found for nonce %x", nonce)
		}
		rec, err = unmarshalRecord(raw)
		return err
	})

	return rec, err
}

func (p *BboltPersister) ListChannels(nodeID string) ([]*ChannelRecord, error) {
	var recs []*ChannelRecord

	err := p.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(channelsBucket)
		bucket := root.Bucket([]byte(nodeID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			rec, err := unmarshalRecord(v)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})

	return recs, err
}

func (p *BboltPersister) PutAllowlist(nodeID string, addresses []string) error {
	raw, err := marshalAddresses(addresses)
	if err != nil {
		return err
	}

	return p.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket(nodeBucket).CreateBucketIfNotExists([]byte(nodeID))
		if err != nil {
			return err
		}
		return bucket.Put(allowlistKey, raw)
	})
}

func (p *BboltPersister) GetAllowlist(nodeID string) ([]string, error) {
	var addresses []string

	err := p.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(nodeBucket)
		bucket := root.Bucket([]byte(nodeID))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(allowlistKey)
		if raw == nil {
			return nil
		}
		var err error
		addresses, err = unmarshalAddresses(raw)
		return err
	})

	return addresses, err
}

func (p *BboltPersister) Close() error {
	return p.db.Close()
}
