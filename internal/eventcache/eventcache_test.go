package eventcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

func events(ids ...string) []*event.Event {
	out := make([]*event.Event, len(ids))
	for i, id := range ids {
		out[i] = &event.Event{ID: id}
	}
	return out
}

func TestAppendAndGetEventsSince(t *testing.T) {
	c := New(10)
	c.Append(events("1", "2", "3"))

	since, err := c.GetEventsSince("1")
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "2", since[0].ID)
	assert.Equal(t, "3", since[1].ID)
}

func TestGetEventsSince_UnknownIDFails(t *testing.T) {
	c := New(10)
	c.Append(events("1"))

	_, err := c.GetEventsSince("nope")
	assert.ErrorIs(t, err, accesserr.ErrEventNotCached)
}

func TestAppend_EvictsOldestBeyondCapacity(t *testing.T) {
	c := New(2)
	c.Append(events("1", "2", "3"))

	assert.Equal(t, 2, c.Size())

	_, err := c.GetEventsSince("1")
	assert.ErrorIs(t, err, accesserr.ErrEventNotCached)

	since, err := c.GetEventsSince("2")
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "3", since[0].ID)
}

func TestGetEventsSince_LastEventReturnsEmpty(t *testing.T) {
	c := New(10)
	c.Append(events("1", "2"))

	since, err := c.GetEventsSince("2")
	require.NoError(t, err)
	assert.Empty(t, since)
}
