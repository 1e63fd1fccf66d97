// Package persist defines the EventPersister contract (§4.5): an
// abstract durable log, not a specific database. internal/persist/bolt
// provides a reference implementation; any durable store honoring
// this contract can stand in for it.
package persist

import (
	"context"
	"time"

	"github.com/cuemby/accessmesh/internal/event"
)

// EventPersister durably appends and replays events. Implementations
// must enforce: (1) PersistBatch preserves caller order; (2) the
// recorded transaction-time is monotonically non-decreasing across
// calls, refusing any batch whose claimed time regresses; (3) within
// identical transaction times, TransactionSequence disambiguates
// order; (4) a partial batch failure rolls back the whole batch.
type EventPersister interface {
	// PersistBatch durably appends events in order, stamping each with
	// a transaction time and sequence, and returns the stamped events.
	PersistBatch(ctx context.Context, batch []*event.Event) ([]*event.Event, error)

	// GetEventsAfter returns events with (transactionTime,
	// transactionSequence) strictly greater than the given pair, in
	// order, used by ReaderNode to catch up past the temporal cache.
	GetEventsAfter(ctx context.Context, txTime time.Time, txSequence int64) ([]*event.Event, error)

	// GetEventsInHashRange returns events of the given kind whose
	// HashCode falls in [hashLo, hashHi] and whose transaction time is
	// at or after sinceTxTime, in order. Used by split backfill.
	GetEventsInHashRange(ctx context.Context, kind event.Kind, hashLo, hashHi int32, sinceTxTime time.Time) ([]*event.Event, error)

	// DeleteEventsInHashRange removes events of the given kind whose
	// HashCode falls in [hashLo, hashHi] and whose transaction time is
	// strictly before beforeTxTime. Used after a split cutover to drop
	// the range the new shard now owns.
	DeleteEventsInHashRange(ctx context.Context, kind event.Kind, hashLo, hashHi int32, beforeTxTime time.Time) error

	// LoadSnapshot replays the entire log in transaction order,
	// invoking apply for each event, to let a caller rebuild an
	// AccessManager from scratch.
	LoadSnapshot(ctx context.Context, apply func(*event.Event) error) error

	// Close releases any underlying resources.
	Close() error
}
