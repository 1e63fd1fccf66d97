// Package reader implements the ReaderNode refresh loop (§4.6): a
// replica that reapplies events to a local access.Manager to serve
// queries, falling back from the temporal cache to the persister when
// the cache has evicted the reader's current tail.
package reader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/accessmesh/internal/access"
	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
	"github.com/cuemby/accessmesh/pkg/log"
	"github.com/cuemby/accessmesh/pkg/metrics"
)

// Cache is the subset of eventcache.Cache the reader needs.
type Cache interface {
	GetEventsSince(priorID string) ([]*event.Event, error)
}

// Persister is the subset of persist.EventPersister the reader needs.
type Persister interface {
	GetEventsAfter(ctx context.Context, txTime time.Time, txSequence int64) ([]*event.Event, error)
}

// Node polls the cache (falling back to the persister) on an
// interval, reapplying new events to its local access.Manager.
type Node struct {
	manager   *access.Manager
	cache     Cache
	persister Persister
	interval  time.Duration

	mu              sync.Mutex
	currentTailID   string
	lastAppliedTime time.Time
	lastAppliedSeq  int64
	appliedIDs      map[string]struct{} // small dedup window

	stop chan struct{}
	done chan struct{}
}

// New constructs a reader Node. manager should be freshly loaded (via
// Persister.LoadSnapshot, performed by the caller before Start) so the
// reader begins from a consistent base state.
func New(manager *access.Manager, cache Cache, persister Persister, interval time.Duration) *Node {
	return &Node{
		manager:    manager,
		cache:      cache,
		persister:  persister,
		interval:   interval,
		appliedIDs: make(map[string]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the refresh loop.
func (n *Node) Start(ctx context.Context) {
	go n.run(ctx)
}

// Stop halts the refresh loop and blocks until it exits.
func (n *Node) Stop() {
	close(n.stop)
	<-n.done
}

func (n *Node) run(ctx context.Context) {
	defer close(n.done)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.refresh(ctx)
		case <-n.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// refresh performs one iteration of the §4.6 loop: try the cache
// first, fall back to the persister on a cache miss.
func (n *Node) refresh(ctx context.Context) {
	n.mu.Lock()
	tail := n.currentTailID
	lastTime := n.lastAppliedTime
	lastSeq := n.lastAppliedSeq
	n.mu.Unlock()

	timer := metrics.NewTimer()

	batch, err := n.cache.GetEventsSince(tail)
	if err != nil {
		if !errors.Is(err, accesserr.ErrEventNotCached) {
			log.WithComponent("reader").Error().Err(err).Msg("unexpected cache error")
			return
		}
		metrics.CacheMissTotal.Inc()
		batch, err = n.persister.GetEventsAfter(ctx, lastTime, lastSeq)
		if err != nil {
			log.WithComponent("reader").Error().Err(err).Msg("persister fallback failed")
			return
		}
	} else {
		metrics.CacheHitTotal.Inc()
	}

	n.apply(batch)
	timer.ObserveDuration(metrics.ReaderApplyDuration)
	metrics.ReaderLagEvents.Set(float64(len(batch)))
}

// apply reapplies each event idempotently: duplicates within the
// dedup window are skipped, and the manager's own idempotency absorbs
// anything older than the window.
func (n *Node) apply(batch []*event.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, e := range batch {
		if _, seen := n.appliedIDs[e.ID]; seen {
			continue
		}
		if err := n.manager.Apply(e); err != nil {
			log.WithComponent("reader").Error().Err(err).Str("event_id", e.ID).Msg("failed to apply event")
			continue
		}
		n.appliedIDs[e.ID] = struct{}{}
		n.currentTailID = e.ID
		if !e.TransactionTime.IsZero() {
			n.lastAppliedTime = e.TransactionTime
			n.lastAppliedSeq = e.TransactionSequence
		}
		n.trimDedupWindow()
	}
}

// dedupWindowSize bounds how many recent event ids the reader
// remembers purely to skip re-application within one refresh cycle;
// the manager's own Add/Remove idempotency is what actually makes
// replay safe beyond this window.
const dedupWindowSize = 4096

func (n *Node) trimDedupWindow() {
	if len(n.appliedIDs) <= dedupWindowSize {
		return
	}
	// Map iteration order is unspecified, which is fine here: any
	// arbitrary subset can be evicted since safety comes from the
	// manager's idempotency, not from this window's exact contents.
	excess := len(n.appliedIDs) - dedupWindowSize
	for id := range n.appliedIDs {
		if excess == 0 {
			break
		}
		delete(n.appliedIDs, id)
		excess--
	}
}

// CurrentTail returns the id of the last event this reader applied,
// for diagnostics and tests.
func (n *Node) CurrentTail() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTailID
}
