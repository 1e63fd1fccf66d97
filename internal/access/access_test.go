package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

func TestAddUserToGroupMapping_DependencyFreePrependsMissingElements(t *testing.T) {
	m := New() // dependency-free by default

	require.NoError(t, m.AddUserToGroupMapping("alice", "admins"))

	assert.True(t, m.ContainsUser("alice"))
	assert.True(t, m.ContainsGroup("admins"))
	assert.True(t, m.ContainsUserToGroupMapping("alice", "admins"))
}

func TestAddUserToGroupMapping_StrictModeRequiresPriorElements(t *testing.T) {
	m := New(WithStrictMode())

	err := m.AddUserToGroupMapping("alice", "admins")
	assert.ErrorIs(t, err, accesserr.ErrNotFound)
}

func TestDuplicateAddIsNoOp(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUser("alice"))
	assert.NoError(t, m.AddUser("alice"))
}

func TestAbsentRemoveIsNoOp(t *testing.T) {
	m := New()
	assert.NoError(t, m.RemoveUser("alice"))
}

func TestAddGroupToGroupMapping_CycleAlwaysSurfaced(t *testing.T) {
	m := New()
	require.NoError(t, m.AddGroupToGroupMapping("a", "b"))
	require.NoError(t, m.AddGroupToGroupMapping("b", "c"))

	err := m.AddGroupToGroupMapping("c", "a")
	assert.ErrorIs(t, err, accesserr.ErrCycleWouldBeCreated)
}

func TestHasAccessToComponent_DirectOnly(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToComponentAccess("alice", "billing", "write"))

	assert.True(t, m.HasAccessToComponent("alice", "billing", "write", false))
	assert.False(t, m.HasAccessToComponent("alice", "billing", "read", false))
}

func TestHasAccessToComponent_IndirectThroughGroupClosure(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToGroupMapping("alice", "engineers"))
	require.NoError(t, m.AddGroupToGroupMapping("engineers", "staff"))
	require.NoError(t, m.AddGroupToComponentAccess("staff", "billing", "read"))

	assert.False(t, m.HasAccessToComponent("alice", "billing", "read", false))
	assert.True(t, m.HasAccessToComponent("alice", "billing", "read", true))
}

func TestHasAccessToEntity_IndirectThroughGroupClosure(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToGroupMapping("alice", "clinicians"))
	require.NoError(t, m.AddGroupToGroupMapping("clinicians", "staff"))
	require.NoError(t, m.AddGroupToEntity("staff", "patient", "p1"))

	assert.False(t, m.HasAccessToEntity("alice", "patient", "p1", false))
	assert.True(t, m.HasAccessToEntity("alice", "patient", "p1", true))
}

func TestComponentsAccessibleByUser_UnionsDirectAndGroup(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToComponentAccess("alice", "billing", "write"))
	require.NoError(t, m.AddUserToGroupMapping("alice", "engineers"))
	require.NoError(t, m.AddGroupToComponentAccess("engineers", "deploy", "read"))

	accesses := m.ComponentsAccessibleByUser("alice", true)
	assert.Len(t, accesses, 2)
}

func TestEntitiesAccessibleByUser_FiltersByEntityType(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToEntity("alice", "patient", "p1"))
	require.NoError(t, m.AddUserToEntity("alice", "document", "d1"))

	patients := m.EntitiesAccessibleByUser("alice", "patient", false)
	require.Len(t, patients, 1)
	assert.Equal(t, "p1", patients[0].Entity)

	all := m.EntitiesAccessibleByUser("alice", "", false)
	assert.Len(t, all, 2)
}

func TestRemoveUser_PurgesMappings(t *testing.T) {
	m := New()
	require.NoError(t, m.AddUserToComponentAccess("alice", "billing", "write"))
	require.NoError(t, m.AddUserToGroupMapping("alice", "admins"))

	require.NoError(t, m.RemoveUser("alice"))

	assert.False(t, m.ContainsUser("alice"))
	assert.False(t, m.HasAccessToComponent("alice", "billing", "write", false))
}

func TestApply_DispatchesByKind(t *testing.T) {
	m := New()

	require.NoError(t, m.Apply(&event.Event{Action: event.ActionAdd, Kind: event.KindUser, User: "alice"}))
	require.NoError(t, m.Apply(&event.Event{Action: event.ActionAdd, Kind: event.KindGroup, Group: "admins"}))
	require.NoError(t, m.Apply(&event.Event{Action: event.ActionAdd, Kind: event.KindUserToGroup, User: "alice", Group: "admins"}))

	assert.True(t, m.ContainsUserToGroupMapping("alice", "admins"))

	require.NoError(t, m.Apply(&event.Event{Action: event.ActionRemove, Kind: event.KindUserToGroup, User: "alice", Group: "admins"}))
	assert.False(t, m.ContainsUserToGroupMapping("alice", "admins"))
}

func TestApply_UnknownKindIsMalformed(t *testing.T) {
	m := New()
	err := m.Apply(&event.Event{Action: event.ActionAdd, Kind: "bogus"})
	assert.ErrorIs(t, err, accesserr.ErrMalformedEvent)
}
