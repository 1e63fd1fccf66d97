package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/internal/event"
)

func applyAll(t *testing.T, m *Manager, events []*event.Event) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, m.Apply(e))
	}
}

func TestCascadeRemoveUser_CoversEveryDependentMapping(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToGroupMapping("alice", "admins"))
	require.NoError(t, m.AddUserToComponentAccess("alice", "billing", "read"))
	require.NoError(t, m.AddUserToEntity("alice", "patient", "p1"))

	events := m.CascadeRemoveUser("alice")
	require.NotEmpty(t, events)
	assert.Equal(t, event.KindUser, events[len(events)-1].Kind, "primary Remove event must be last")
	assert.Equal(t, event.ActionRemove, events[len(events)-1].Action)

	kinds := make(map[event.Kind]int)
	for _, e := range events {
		assert.Equal(t, event.ActionRemove, e.Action)
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[event.KindUserToGroup])
	assert.Equal(t, 1, kinds[event.KindUserToComponentAccess])
	assert.Equal(t, 1, kinds[event.KindUserToEntity])
	assert.Equal(t, 1, kinds[event.KindUser])

	applyAll(t, m, events)
	assert.False(t, m.ContainsUser("alice"))
	assert.True(t, m.ContainsGroup("admins"), "replaying the cascade must not remove the group itself")
}

func TestCascadeRemoveGroup_CoversIncomingAndOutgoingEdges(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToGroupMapping("alice", "admins"))
	require.NoError(t, m.AddGroupToGroupMapping("admins", "staff"))
	require.NoError(t, m.AddGroupToComponentAccess("admins", "billing", "write"))

	events := m.CascadeRemoveGroup("admins")
	require.NotEmpty(t, events)
	assert.Equal(t, event.KindGroup, events[len(events)-1].Kind)

	kinds := make(map[event.Kind]int)
	for _, e := range events {
		assert.Equal(t, event.ActionRemove, e.Action)
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[event.KindUserToGroup], "alice->admins must be unwound")
	assert.Equal(t, 1, kinds[event.KindGroupToGroup], "admins->staff must be unwound")
	assert.Equal(t, 1, kinds[event.KindGroupToComponentAccess])
	assert.Equal(t, 1, kinds[event.KindGroup])

	applyAll(t, m, events)
	assert.False(t, m.ContainsGroup("admins"))
	assert.True(t, m.ContainsUser("alice"))
	assert.True(t, m.ContainsGroup("staff"))
	assert.False(t, m.ContainsUserToGroupMapping("alice", "admins"))
}

func TestCascadeRemoveUser_OnAbsentUserIsJustThePrimaryEvent(t *testing.T) {
	m := New()
	events := m.CascadeRemoveUser("ghost")
	require.Len(t, events, 1)
	assert.Equal(t, event.KindUser, events[0].Kind)
}
