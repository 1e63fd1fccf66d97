package shardconfig

import (
	"context"
	"encoding/json"

	"go.etcd.io/bbolt"

	"github.com/cuemby/accessmesh/pkg/accesserr"
)

// Store is the ShardConfiguration persistence contract: a single
// current value, replaced wholesale on each update.
type Store interface {
	Get(ctx context.Context) (*Configuration, error)
	Put(ctx context.Context, cfg *Configuration) error
}

var (
	bucketName = []byte("shard_configuration")
	currentKey = []byte("current")
)

// BoltStore is the non-replicated reference Store, for a single
// coordinator process or for tests. ReplicatedStore does not use it:
// its Raft FSM holds the configuration in memory.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt-backed
// configuration store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, accesserr.Wrap("opening shard configuration store", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, accesserr.Wrap("initializing shard configuration bucket", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (s *BoltStore) Close() error { return s.db.Close() }

// Get returns the current configuration, or ErrNotFound if none has
// ever been put.
func (s *BoltStore) Get(ctx context.Context) (*Configuration, error) {
	var cfg Configuration
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get(currentKey)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &cfg)
	})
	if err != nil {
		return nil, accesserr.Wrap("reading shard configuration", err)
	}
	if !found {
		return nil, accesserr.ErrNotFound
	}
	return &cfg, nil
}

// Put replaces the current configuration wholesale.
func (s *BoltStore) Put(ctx context.Context, cfg *Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return accesserr.Wrap("marshaling shard configuration", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(currentKey, data)
	})
	if err != nil {
		return accesserr.Wrap("writing shard configuration", err)
	}
	return nil
}
