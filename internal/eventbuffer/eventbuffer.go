// Package eventbuffer implements EventBuffer and FlushStrategy (§4.3):
// ten independent per-kind FIFOs feeding a background worker that
// assembles ordered batches for the bulk persister.
package eventbuffer

import (
	"context"
	"sync"

	"github.com/cuemby/accessmesh/internal/event"
)

// queue is one kind's FIFO, guarded by its own mutex so producers
// targeting different kinds never contend.
type queue struct {
	mu    sync.Mutex
	items []queuedEvent
}

type queuedEvent struct {
	seq int64
	ev  *event.Event
}

// Buffer holds ten independent per-kind FIFOs plus a global enqueue
// sequence counter shared across all of them, so a flush can merge
// every queue back into total enqueue order.
type Buffer struct {
	seqMu sync.Mutex
	seq   int64

	queues map[event.Kind]*queue
}

// New constructs an empty Buffer with one queue per event kind.
func New() *Buffer {
	b := &Buffer{queues: make(map[event.Kind]*queue, len(event.AllKinds))}
	for _, k := range event.AllKinds {
		b.queues[k] = &queue{}
	}
	return b
}

// Enqueue appends e to its kind's FIFO. Non-blocking: a brief mutex,
// O(1), never touches the persister.
func (b *Buffer) Enqueue(e *event.Event) {
	b.seqMu.Lock()
	seq := b.seq
	b.seq++
	b.seqMu.Unlock()

	q := b.queues[e.Kind]
	q.mu.Lock()
	q.items = append(q.items, queuedEvent{seq: seq, ev: e})
	q.mu.Unlock()
}

// Depth returns the number of currently buffered events across every
// queue.
func (b *Buffer) Depth() int {
	total := 0
	for _, q := range b.queues {
		q.mu.Lock()
		total += len(q.items)
		q.mu.Unlock()
	}
	return total
}

// Depths returns the per-kind buffered count, satisfying
// pkg/metrics.BufferSource.
func (b *Buffer) Depths() map[string]int {
	out := make(map[string]int, len(b.queues))
	for k, q := range b.queues {
		q.mu.Lock()
		out[string(k)] = len(q.items)
		q.mu.Unlock()
	}
	return out
}

// drain empties every queue and returns their contents merged into a
// single batch ordered by enqueue sequence, satisfying the persister
// contract that a batch is totally ordered.
func (b *Buffer) drain() []*event.Event {
	var all []queuedEvent
	for _, q := range b.queues {
		q.mu.Lock()
		all = append(all, q.items...)
		q.items = nil
		q.mu.Unlock()
	}

	// Simple insertion sort by sequence: batches are small (bounded by
	// the flush threshold), so an O(n^2) sort here is not a hot path.
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].seq < all[j-1].seq; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}

	out := make([]*event.Event, len(all))
	for i, qe := range all {
		out[i] = qe.ev
	}
	return out
}

// BulkPersister is the subset of persist.EventPersister the flush
// worker needs; declared locally so this package doesn't import
// internal/persist just for one method's signature.
type BulkPersister interface {
	PersistBatch(ctx context.Context, batch []*event.Event) ([]*event.Event, error)
}
