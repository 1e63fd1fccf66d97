// Package bolt is the reference EventPersister (§4.5) backed by
// go.etcd.io/bbolt: one bucket per event kind for hash-range scans,
// one append-only log bucket keyed by transaction order, and a meta
// bucket tracking the last assigned transaction time/sequence.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
	"github.com/cuemby/accessmesh/pkg/log"
)

var (
	logBucket  = []byte("event_log")
	metaBucket = []byte("meta")
	maxTxKey   = []byte("max_tx")
)

func kindBucket(k event.Kind) []byte {
	return []byte("by_hash_" + string(k))
}

// Store is a bbolt-backed EventPersister.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) a bbolt-backed event log at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, accesserr.Wrap("opening event log", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(logBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		for _, k := range event.AllKinds {
			if _, err := tx.CreateBucketIfNotExists(kindBucket(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, accesserr.Wrap("initializing event log buckets", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// logKey is the composite (transactionTime, transactionSequence) key
// ordering the append-only log total order.
func logKey(txTime time.Time, txSeq int64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], uint64(txTime.UnixNano()))
	binary.BigEndian.PutUint64(key[8:16], uint64(txSeq))
	return key
}

func parseLogKey(key []byte) (time.Time, int64) {
	nanos := int64(binary.BigEndian.Uint64(key[0:8]))
	seq := int64(binary.BigEndian.Uint64(key[8:16]))
	return time.Unix(0, nanos).UTC(), seq
}

// hashKey is the composite (hashCode, transactionTime, sequence) key
// a kind bucket is ordered by, letting a range scan by hash bounds
// use bbolt's cursor Seek directly.
func hashKey(hashCode int32, txTime time.Time, txSeq int64) []byte {
	key := make([]byte, 20)
	binary.BigEndian.PutUint32(key[0:4], uint32(hashCode)^0x80000000) // fold signed->unsigned ordering
	binary.BigEndian.PutUint64(key[4:12], uint64(txTime.UnixNano()))
	binary.BigEndian.PutUint64(key[12:20], uint64(txSeq))
	return key
}

func foldedHash(hashCode int32) uint32 {
	return uint32(hashCode) ^ 0x80000000
}

// PersistBatch assigns each event in batch a transaction time clamped
// to be >= the last recorded max (so the monotonicity invariant holds
// by construction rather than by rejecting the caller), and a
// per-time sequence disambiguating ties, then writes the whole batch
// in one bbolt transaction so a partial failure rolls back entirely.
func (s *Store) PersistBatch(ctx context.Context, batch []*event.Event) ([]*event.Event, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	stamped := make([]*event.Event, len(batch))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		logBkt := tx.Bucket(logBucket)

		lastTxTime, lastTxSeq := readMaxTx(meta)

		now := time.Now().UTC()
		txTime := now
		txSeq := int64(0)
		if !txTime.After(lastTxTime) {
			txTime = lastTxTime
			txSeq = lastTxSeq + 1
		}

		for i, e := range batch {
			cp := *e
			cp.TransactionTime = txTime
			cp.TransactionSequence = txSeq
			stamped[i] = &cp

			data, err := json.Marshal(&cp)
			if err != nil {
				return fmt.Errorf("marshaling event %s: %w", cp.ID, err)
			}

			if err := logBkt.Put(logKey(txTime, txSeq), data); err != nil {
				return err
			}

			kb := tx.Bucket(kindBucket(cp.Kind))
			if kb == nil {
				return fmt.Errorf("unknown event kind %q: %w", cp.Kind, accesserr.ErrMalformedEvent)
			}
			if err := kb.Put(hashKey(cp.HashCode, txTime, txSeq), data); err != nil {
				return err
			}

			txSeq++
		}

		return writeMaxTx(meta, txTime, txSeq-1)
	})
	if err != nil {
		return nil, accesserr.Wrap("persisting batch", err)
	}

	return stamped, nil
}

func readMaxTx(meta *bbolt.Bucket) (time.Time, int64) {
	data := meta.Get(maxTxKey)
	if data == nil {
		return time.Time{}, -1
	}
	t, seq := parseLogKey(data)
	return t, seq
}

func writeMaxTx(meta *bbolt.Bucket, txTime time.Time, txSeq int64) error {
	return meta.Put(maxTxKey, logKey(txTime, txSeq))
}

// GetEventsAfter returns events strictly after (txTime, txSeq) in
// total log order.
func (s *Store) GetEventsAfter(ctx context.Context, txTime time.Time, txSeq int64) ([]*event.Event, error) {
	var out []*event.Event

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(logBucket).Cursor()
		seek := logKey(txTime, txSeq)
		k, v := c.Seek(seek)
		if txTime.IsZero() {
			// The zero time's UnixNano overflows and its key sorts after
			// every real entry, so start from the head of the log instead.
			k, v = c.First()
		}
		for ; k != nil; k, v = c.Next() {
			kTime, kSeq := parseLogKey(k)
			if kTime.Equal(txTime) && kSeq <= txSeq {
				continue
			}
			var e event.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding logged event: %w", err)
			}
			out = append(out, &e)
		}
		return nil
	})
	if err != nil {
		return nil, accesserr.Wrap("reading events after tail", err)
	}
	return out, nil
}

// GetEventsInHashRange returns events of kind whose HashCode falls in
// [hashLo, hashHi] and whose transaction time is >= sinceTxTime.
func (s *Store) GetEventsInHashRange(ctx context.Context, kind event.Kind, hashLo, hashHi int32, sinceTxTime time.Time) ([]*event.Event, error) {
	var out []*event.Event

	err := s.db.View(func(tx *bbolt.Tx) error {
		kb := tx.Bucket(kindBucket(kind))
		if kb == nil {
			return fmt.Errorf("unknown event kind %q: %w", kind, accesserr.ErrMalformedEvent)
		}
		c := kb.Cursor()
		lo := foldedHash(hashLo)
		hi := foldedHash(hashHi)
		for k, v := c.Seek(hashKey(hashLo, time.Unix(0, 0), 0)); k != nil; k, v = c.Next() {
			h := binary.BigEndian.Uint32(k[0:4])
			if h > hi {
				break
			}
			if h < lo {
				continue
			}
			evTime := time.Unix(0, int64(binary.BigEndian.Uint64(k[4:12]))).UTC()
			if evTime.Before(sinceTxTime) {
				continue
			}
			var e event.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding logged event: %w", err)
			}
			out = append(out, &e)
		}
		return nil
	})
	if err != nil {
		return nil, accesserr.Wrap("reading events in hash range", err)
	}
	return out, nil
}

// DeleteEventsInHashRange removes events of kind whose HashCode falls
// in [hashLo, hashHi] and whose transaction time is strictly before
// beforeTxTime, used after a split cutover.
func (s *Store) DeleteEventsInHashRange(ctx context.Context, kind event.Kind, hashLo, hashHi int32, beforeTxTime time.Time) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		kb := tx.Bucket(kindBucket(kind))
		if kb == nil {
			return fmt.Errorf("unknown event kind %q: %w", kind, accesserr.ErrMalformedEvent)
		}
		logBkt := tx.Bucket(logBucket)

		c := kb.Cursor()
		lo := foldedHash(hashLo)
		hi := foldedHash(hashHi)

		var toDelete [][]byte
		var logKeysToDelete [][]byte
		for k, _ := c.Seek(hashKey(hashLo, time.Unix(0, 0), 0)); k != nil; k, _ = c.Next() {
			h := binary.BigEndian.Uint32(k[0:4])
			if h > hi {
				break
			}
			if h < lo {
				continue
			}
			evTime := time.Unix(0, int64(binary.BigEndian.Uint64(k[4:12]))).UTC()
			if !evTime.Before(beforeTxTime) {
				continue
			}
			keyCopy := append([]byte(nil), k...)
			toDelete = append(toDelete, keyCopy)
			// The hash key's trailing 16 bytes are exactly the
			// (transactionTime, transactionSequence) logKey, so the
			// matching log_bucket entry can be deleted without
			// re-decoding the event.
			logKeysToDelete = append(logKeysToDelete, append([]byte(nil), keyCopy[4:]...))
		}
		for _, k := range toDelete {
			if err := kb.Delete(k); err != nil {
				return err
			}
		}
		for _, k := range logKeysToDelete {
			if err := logBkt.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return accesserr.Wrap("deleting events in hash range", err)
	}
	return nil
}

// LoadSnapshot replays the entire log in transaction order.
func (s *Store) LoadSnapshot(ctx context.Context, apply func(*event.Event) error) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(logBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e event.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding logged event: %w", err)
			}
			if err := apply(&e); err != nil {
				return fmt.Errorf("applying event %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return accesserr.Wrap("loading snapshot", err)
	}
	log.WithComponent("persist.bolt").Info().Msg("snapshot load complete")
	return nil
}
