// Package eventcache implements the TemporalEventCache (§4.4): a
// bounded list of the most recently persisted events plus an id index,
// so a ReaderNode can usually catch up without touching the persister.
package eventcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

// Cache is a bounded ring of the N most recent events, ordered by
// arrival, with O(1) lookup from an event id to its position.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	order    *list.List // list.Element.Value is *event.Event, oldest at Front
	byID     map[string]*list.Element
}

// New constructs a Cache retaining at most capacity events.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[string]*list.Element),
	}
}

// Append adds batch, in order, evicting the oldest entries to respect
// capacity.
func (c *Cache) Append(batch []*event.Event) {
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range batch {
		el := c.order.PushBack(e)
		c.byID[e.ID] = el
	}

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.byID, oldest.Value.(*event.Event).ID)
	}
}

// GetEventsSince returns every event strictly after priorId, in
// order. If priorId is not present in the cache (evicted or never
// seen), it fails with ErrEventNotCached, signalling the caller to
// fall back to the persister.
func (c *Cache) GetEventsSince(priorID string) ([]*event.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	el, ok := c.byID[priorID]
	if !ok {
		return nil, fmt.Errorf("event %q: %w", priorID, accesserr.ErrEventNotCached)
	}

	var out []*event.Event
	for cur := el.Next(); cur != nil; cur = cur.Next() {
		out = append(out, cur.Value.(*event.Event))
	}
	return out, nil
}

// Size returns the number of events currently retained, satisfying
// pkg/metrics.CacheSource.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
