package reader

import (
	"context"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/internal/access"
	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

type fakeCache struct {
	events []*event.Event
	err    error
}

func (f *fakeCache) GetEventsSince(priorID string) ([]*event.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakePersister struct {
	events []*event.Event
}

func (f *fakePersister) GetEventsAfter(ctx context.Context, txTime time.Time, txSeq int64) ([]*event.Event, error) {
	return f.events, nil
}

func TestRefresh_AppliesFromCacheOnHit(t *testing.T) {
	m := access.New()
	cache := &fakeCache{events: []*event.Event{
		{ID: "1", Action: event.ActionAdd, Kind: event.KindUser, User: "alice"},
	}}
	persister := &fakePersister{}

	n := New(m, cache, persister, time.Hour)
	n.refresh(context.Background())

	assert.True(t, m.ContainsUser("alice"))
	assert.Equal(t, "1", n.CurrentTail())
}

func TestRefresh_FallsBackToPersisterOnCacheMiss(t *testing.T) {
	m := access.New()
	cache := &fakeCache{err: accesserr.ErrEventNotCached}
	persister := &fakePersister{events: []*event.Event{
		{ID: "1", Action: event.ActionAdd, Kind: event.KindUser, User: "bob"},
	}}

	n := New(m, cache, persister, time.Hour)
	n.refresh(context.Background())

	assert.True(t, m.ContainsUser("bob"))
}

func TestApply_SkipsAlreadyAppliedWithinDedupWindow(t *testing.T) {
	m := access.New()
	n := New(m, &fakeCache{}, &fakePersister{}, time.Hour)

	e := &event.Event{ID: "1", Action: event.ActionAdd, Kind: event.KindUser, User: "alice"}
	n.apply([]*event.Event{e})
	require.NoError(t, m.RemoveUser("alice"))

	// Re-applying the same id should be a no-op (skipped by the dedup
	// window), so alice should remain absent rather than be re-added.
	n.apply([]*event.Event{e})
	assert.False(t, m.ContainsUser("alice"))
}
