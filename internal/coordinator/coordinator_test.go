package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/internal/shardclient"
	"github.com/cuemby/accessmesh/internal/shardconfig"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

type fakeHandle struct {
	endpoint string
	response interface{}
	err      error
	calls    []string
	mu       sync.Mutex
}

func (h *fakeHandle) Call(ctx context.Context, method string, payload interface{}) (interface{}, error) {
	h.mu.Lock()
	h.calls = append(h.calls, method)
	h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	return h.response, nil
}

func (h *fakeHandle) Close() error { return nil }

type fakeShards struct {
	byEndpointForKind map[shardconfig.Kind]map[string]*fakeHandle // element -> handle
	all               map[shardconfig.Kind][]shardclient.ClientHandle
	routeAllErr       error
}

func (f *fakeShards) RouteOne(kind shardconfig.Kind, element string) (shardclient.ClientHandle, error) {
	handle, ok := f.byEndpointForKind[kind][element]
	if !ok {
		return nil, accesserr.ErrNotFound
	}
	return handle, nil
}

func (f *fakeShards) RouteAll(kind shardconfig.Kind) ([]shardclient.ClientHandle, error) {
	if f.routeAllErr != nil {
		return nil, f.routeAllErr
	}
	return f.all[kind], nil
}

func TestAddUser_RoutesToOwningShard(t *testing.T) {
	handle := &fakeHandle{endpoint: "shard-a"}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser: {"alice": handle},
	}}

	c := New(shards, 4)
	require.NoError(t, c.AddUser(context.Background(), "alice"))
	assert.Equal(t, []string{"AddUser"}, handle.calls)
}

func TestAddGroup_ForwardsToOwningShardThenPrependsAcrossGroupToGroupShards(t *testing.T) {
	owner := &fakeHandle{endpoint: "shard-owner"}
	h1 := &fakeHandle{endpoint: "shard-a"}
	h2 := &fakeHandle{endpoint: "shard-b"}
	shards := &fakeShards{
		byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
			shardconfig.KindGroup: {"admins": owner},
		},
		all: map[shardconfig.Kind][]shardclient.ClientHandle{
			shardconfig.KindGroupToGroup: {h1, h2},
		},
	}

	c := New(shards, 4)
	require.NoError(t, c.AddGroup(context.Background(), "admins"))
	assert.Equal(t, []string{"AddGroup"}, owner.calls)
	assert.Equal(t, []string{"AddGroup"}, h1.calls)
	assert.Equal(t, []string{"AddGroup"}, h2.calls)
}

func TestAddGroup_AbortsOnTransportError(t *testing.T) {
	owner := &fakeHandle{endpoint: "shard-owner"}
	h1 := &fakeHandle{endpoint: "shard-a"}
	h2 := &fakeHandle{endpoint: "shard-b", err: errors.New("boom")}
	shards := &fakeShards{
		byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
			shardconfig.KindGroup: {"admins": owner},
		},
		all: map[shardconfig.Kind][]shardclient.ClientHandle{
			shardconfig.KindGroupToGroup: {h1, h2},
		},
	}

	c := New(shards, 4)
	err := c.AddGroup(context.Background(), "admins")
	assert.ErrorIs(t, err, accesserr.ErrUpstreamUnavailable)
}

func TestHasAccessToEntity_ShortCircuitsOnDirectAccess(t *testing.T) {
	userHandle := &fakeHandle{response: directAccessResult{Direct: true}}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser: {"alice": userHandle},
	}}

	c := New(shards, 4)
	ok, err := c.HasAccessToEntity(context.Background(), "alice", "doc", "report-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasAccessToEntity_FansOutToReachableGroups(t *testing.T) {
	userHandle := &fakeHandle{response: directAccessResult{Direct: false, Groups: []string{"eng", "ops"}}}
	engHandle := &fakeHandle{response: false}
	opsHandle := &fakeHandle{response: true}

	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser:  {"alice": userHandle},
		shardconfig.KindGroup: {"eng": engHandle, "ops": opsHandle},
	}}

	c := New(shards, 4)
	ok, err := c.HasAccessToEntity(context.Background(), "alice", "doc", "report-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasAccessToEntity_FalseWhenNoShardGrantsAccess(t *testing.T) {
	userHandle := &fakeHandle{response: directAccessResult{Direct: false, Groups: []string{"eng"}}}
	engHandle := &fakeHandle{response: false}

	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser:  {"alice": userHandle},
		shardconfig.KindGroup: {"eng": engHandle},
	}}

	c := New(shards, 4)
	ok, err := c.HasAccessToEntity(context.Background(), "alice", "doc", "report-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasAccessToEntity_TransportErrorAbortsRequest(t *testing.T) {
	userHandle := &fakeHandle{response: directAccessResult{Direct: false, Groups: []string{"eng"}}}
	engHandle := &fakeHandle{err: errors.New("network down")}

	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser:  {"alice": userHandle},
		shardconfig.KindGroup: {"eng": engHandle},
	}}

	c := New(shards, 4)
	_, err := c.HasAccessToEntity(context.Background(), "alice", "doc", "report-1")
	assert.ErrorIs(t, err, accesserr.ErrUpstreamUnavailable)
}

func TestHasAccessToComponent_ShortCircuitsOnDirectAccess(t *testing.T) {
	userHandle := &fakeHandle{response: directAccessResult{Direct: true}}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser: {"alice": userHandle},
	}}

	c := New(shards, 4)
	ok, err := c.HasAccessToComponent(context.Background(), "alice", "billing", "admin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveUser_RoutesToOwningShard(t *testing.T) {
	handle := &fakeHandle{endpoint: "shard-a"}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser: {"alice": handle},
	}}

	c := New(shards, 4)
	require.NoError(t, c.RemoveUser(context.Background(), "alice"))
	assert.Equal(t, []string{"RemoveUser"}, handle.calls)
}

func TestRemoveGroup_ForwardsToOwningShardThenRemovesAcrossGroupToGroupShards(t *testing.T) {
	owner := &fakeHandle{endpoint: "shard-owner"}
	h1 := &fakeHandle{endpoint: "shard-a"}
	h2 := &fakeHandle{endpoint: "shard-b"}
	shards := &fakeShards{
		byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
			shardconfig.KindGroup: {"admins": owner},
		},
		all: map[shardconfig.Kind][]shardclient.ClientHandle{
			shardconfig.KindGroupToGroup: {h1, h2},
		},
	}

	c := New(shards, 4)
	require.NoError(t, c.RemoveGroup(context.Background(), "admins"))
	assert.Equal(t, []string{"RemoveGroup"}, owner.calls)
	assert.Equal(t, []string{"RemoveGroup"}, h1.calls)
	assert.Equal(t, []string{"RemoveGroup"}, h2.calls)
}

func TestRemoveGroupToGroupMapping_RoutesToFromGroupShard(t *testing.T) {
	handle := &fakeHandle{endpoint: "shard-a"}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindGroupToGroup: {"eng": handle},
	}}

	c := New(shards, 4)
	require.NoError(t, c.RemoveGroupToGroupMapping(context.Background(), "eng", "all-staff"))
	assert.Equal(t, []string{"RemoveGroupToGroupMapping"}, handle.calls)
}

func TestAddEntityType_BroadcastsToEveryDistinctHandleOnce(t *testing.T) {
	userShard := &fakeHandle{endpoint: "shard-a"}
	groupShard := &fakeHandle{endpoint: "shard-b"}

	shards := &fakeShards{
		all: map[shardconfig.Kind][]shardclient.ClientHandle{
			shardconfig.KindUser:  {userShard},
			shardconfig.KindGroup: {groupShard},
			// userShard is also registered on the group-to-group
			// dimension, the same handle reachable under a second kind.
			shardconfig.KindGroupToGroup: {userShard},
		},
	}

	c := New(shards, 4)
	require.NoError(t, c.AddEntityType(context.Background(), "document"))
	assert.Equal(t, []string{"AddEntityType"}, userShard.calls) // called once, not twice
	assert.Equal(t, []string{"AddEntityType"}, groupShard.calls)
}

func TestAddEntityType_AbortsOnTransportError(t *testing.T) {
	userShard := &fakeHandle{endpoint: "shard-a"}
	groupShard := &fakeHandle{endpoint: "shard-b", err: errors.New("boom")}

	shards := &fakeShards{
		all: map[shardconfig.Kind][]shardclient.ClientHandle{
			shardconfig.KindUser:         {userShard},
			shardconfig.KindGroup:        {groupShard},
			shardconfig.KindGroupToGroup: {},
		},
	}

	c := New(shards, 4)
	err := c.AddEntityType(context.Background(), "document")
	assert.ErrorIs(t, err, accesserr.ErrUpstreamUnavailable)
}

func TestContainsUser_RoutesToOwningShardAndUnwrapsBool(t *testing.T) {
	handle := &fakeHandle{response: true}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser: {"alice": handle},
	}}

	c := New(shards, 4)
	ok, err := c.ContainsUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContainsGroupToGroupMapping_RoutesToFromGroupShard(t *testing.T) {
	handle := &fakeHandle{response: false}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindGroupToGroup: {"eng": handle},
	}}

	c := New(shards, 4)
	ok, err := c.ContainsGroupToGroupMapping(context.Background(), "eng", "all-staff")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"ContainsGroupToGroupMapping"}, handle.calls)
}

func TestComponentsAccessibleByUser_UnionsDirectAndGroupGrants(t *testing.T) {
	userHandle := &fakeHandle{response: componentsAccessibleResult{
		Direct: []ComponentAccessDTO{{Component: "billing", AccessLevel: "read"}},
		Groups: []string{"eng"},
	}}
	engHandle := &fakeHandle{response: []ComponentAccessDTO{
		{Component: "billing", AccessLevel: "read"}, // duplicate, should be deduped
		{Component: "infra", AccessLevel: "admin"},
	}}

	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser:  {"alice": userHandle},
		shardconfig.KindGroup: {"eng": engHandle},
	}}

	c := New(shards, 4)
	got, err := c.ComponentsAccessibleByUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []ComponentAccessDTO{
		{Component: "billing", AccessLevel: "read"},
		{Component: "infra", AccessLevel: "admin"},
	}, got)
}

func TestEntitiesAccessibleByUser_UnionsDirectAndGroupGrants(t *testing.T) {
	userHandle := &fakeHandle{response: entitiesAccessibleResult{
		Direct: []EntityRefDTO{{EntityType: "doc", Entity: "report-1"}},
		Groups: []string{"eng"},
	}}
	engHandle := &fakeHandle{response: []EntityRefDTO{
		{EntityType: "doc", Entity: "report-2"},
	}}

	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser:  {"alice": userHandle},
		shardconfig.KindGroup: {"eng": engHandle},
	}}

	c := New(shards, 4)
	got, err := c.EntitiesAccessibleByUser(context.Background(), "alice", "doc")
	require.NoError(t, err)
	assert.ElementsMatch(t, []EntityRefDTO{
		{EntityType: "doc", Entity: "report-1"},
		{EntityType: "doc", Entity: "report-2"},
	}, got)
}

func TestFanOutAny_NoElementsReturnsFalse(t *testing.T) {
	userHandle := &fakeHandle{response: directAccessResult{Direct: false, Groups: nil}}
	shards := &fakeShards{byEndpointForKind: map[shardconfig.Kind]map[string]*fakeHandle{
		shardconfig.KindUser: {"alice": userHandle},
	}}

	c := New(shards, 4)
	ok, err := c.HasAccessToEntity(context.Background(), "alice", "doc", "report-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
