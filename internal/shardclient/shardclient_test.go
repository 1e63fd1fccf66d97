package shardclient

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/internal/shardconfig"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

type fakeHandle struct {
	endpoint string
	closed   bool
	mu       sync.Mutex
}

func (h *fakeHandle) Call(ctx context.Context, method string, payload interface{}) (interface{}, error) {
	return h.endpoint + ":" + method, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

type fakeTransport struct {
	mu      sync.Mutex
	dialed  []string
	handles map[string]*fakeHandle
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handles: make(map[string]*fakeHandle)}
}

func (t *fakeTransport) Dial(endpoint string) (ClientHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialed = append(t.dialed, endpoint)
	h := &fakeHandle{endpoint: endpoint}
	t.handles[endpoint] = h
	return h, nil
}

func twoShardConfig() *shardconfig.Configuration {
	cfg := shardconfig.NewConfiguration()
	cfg.Ranges[shardconfig.KindUser] = []shardconfig.Range{
		{Lo: 0, Hi: 0x3fffffff, Endpoint: "shard-a"},
		{Lo: 0x40000000, Hi: shardconfig.HashHi, Endpoint: "shard-b"},
	}
	cfg.Ranges[shardconfig.KindGroup] = []shardconfig.Range{
		{Lo: 0, Hi: shardconfig.HashHi, Endpoint: "shard-a"},
	}
	cfg.Ranges[shardconfig.KindGroupToGroup] = []shardconfig.Range{
		{Lo: 0, Hi: shardconfig.HashHi, Endpoint: "shard-a"},
	}
	return cfg
}

func TestRefreshConfiguration_DialsEveryDistinctEndpoint(t *testing.T) {
	transport := newFakeTransport()
	m := NewManager(transport)

	require.NoError(t, m.RefreshConfiguration(twoShardConfig()))

	assert.ElementsMatch(t, []string{"shard-a", "shard-b"}, transport.dialed)
}

func TestRouteOne_ReturnsHandleForOwningShard(t *testing.T) {
	transport := newFakeTransport()
	m := NewManager(transport)
	require.NoError(t, m.RefreshConfiguration(twoShardConfig()))

	handle, err := m.RouteOne(shardconfig.KindGroup, "admins")
	require.NoError(t, err)
	assert.NotNil(t, handle)
}

func TestRouteOne_BeforeConfigurationReturnsNotFound(t *testing.T) {
	m := NewManager(newFakeTransport())
	_, err := m.RouteOne(shardconfig.KindUser, "alice")
	assert.ErrorIs(t, err, accesserr.ErrNotFound)
}

func TestRouteAll_ReturnsEveryDistinctHandle(t *testing.T) {
	transport := newFakeTransport()
	m := NewManager(transport)
	require.NoError(t, m.RefreshConfiguration(twoShardConfig()))

	handles, err := m.RouteAll(shardconfig.KindUser)
	require.NoError(t, err)
	assert.Len(t, handles, 2)
}

func TestRefreshConfiguration_ClosesEvictedHandlesOnly(t *testing.T) {
	transport := newFakeTransport()
	m := NewManager(transport)
	require.NoError(t, m.RefreshConfiguration(twoShardConfig()))

	singleShard := shardconfig.NewConfiguration()
	singleShard.Ranges[shardconfig.KindUser] = []shardconfig.Range{
		{Lo: 0, Hi: shardconfig.HashHi, Endpoint: "shard-a"},
	}
	singleShard.Ranges[shardconfig.KindGroup] = []shardconfig.Range{
		{Lo: 0, Hi: shardconfig.HashHi, Endpoint: "shard-a"},
	}
	singleShard.Ranges[shardconfig.KindGroupToGroup] = []shardconfig.Range{
		{Lo: 0, Hi: shardconfig.HashHi, Endpoint: "shard-a"},
	}
	require.NoError(t, m.RefreshConfiguration(singleShard))

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.True(t, transport.handles["shard-b"].closed)
	assert.False(t, transport.handles["shard-a"].closed)
	// shard-a was reused, not re-dialed.
	assert.ElementsMatch(t, []string{"shard-a", "shard-b"}, transport.dialed)
}

func TestCall_RoutesAndInvokes(t *testing.T) {
	transport := newFakeTransport()
	m := NewManager(transport)
	require.NoError(t, m.RefreshConfiguration(twoShardConfig()))

	result, err := m.Call(context.Background(), shardconfig.KindGroup, "admins", "AddGroup", nil)
	require.NoError(t, err)
	assert.Equal(t, "shard-a:AddGroup", result)
}
