package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/pkg/accesserr"
)

func TestNew_GeneratesIDAndTimestamp(t *testing.T) {
	e := New(ActionAdd, KindUser, 42)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, ActionAdd, e.Action)
	assert.Equal(t, KindUser, e.Kind)
	assert.Equal(t, int32(42), e.HashCode)
	assert.False(t, e.OccurredTime.IsZero())
}

func TestValidate_UserEvent(t *testing.T) {
	e := &Event{Action: ActionAdd, Kind: KindUser, User: "alice"}
	assert.NoError(t, e.Validate())

	bad := &Event{Action: ActionAdd, Kind: KindUser, User: "alice", Group: "admins"}
	assert.ErrorIs(t, bad.Validate(), accesserr.ErrMalformedEvent)
}

func TestValidate_UnknownAction(t *testing.T) {
	e := &Event{Action: "frobnicate", Kind: KindUser, User: "alice"}
	assert.ErrorIs(t, e.Validate(), accesserr.ErrMalformedEvent)
}

func TestPrimaryElement(t *testing.T) {
	cases := []struct {
		name string
		e    *Event
		want string
	}{
		{"user", &Event{Kind: KindUser, User: "alice"}, "alice"},
		{"group", &Event{Kind: KindGroup, Group: "admins"}, "admins"},
		{"userToGroup", &Event{Kind: KindUserToGroup, User: "alice", Group: "admins"}, "alice"},
		{"groupToGroup", &Event{Kind: KindGroupToGroup, FromGroup: "admins", ToGroup: "sudoers"}, "admins"},
		{"entityType", &Event{Kind: KindEntityType, EntityType: "patient"}, "patient"},
		{"entity", &Event{Kind: KindEntity, EntityType: "patient", Entity: "p1"}, "patient/p1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.e.PrimaryElement())
		})
	}
}

func TestMarshalUnmarshalJSON_RoundTrip(t *testing.T) {
	cases := []*Event{
		{Action: ActionAdd, Kind: KindUser, User: "alice", HashCode: 1},
		{Action: ActionAdd, Kind: KindGroup, Group: "admins", HashCode: 2},
		{Action: ActionAdd, Kind: KindUserToGroup, User: "alice", Group: "admins", HashCode: 1},
		{Action: ActionRemove, Kind: KindGroupToGroup, FromGroup: "admins", ToGroup: "sudoers", HashCode: 2},
		{Action: ActionAdd, Kind: KindUserToComponentAccess, User: "alice", ApplicationComponent: "billing", AccessLevel: "write", HashCode: 1},
		{Action: ActionAdd, Kind: KindGroupToComponentAccess, Group: "admins", ApplicationComponent: "billing", AccessLevel: "read", HashCode: 2},
		{Action: ActionAdd, Kind: KindEntityType, EntityType: "patient", HashCode: 9},
		{Action: ActionAdd, Kind: KindEntity, EntityType: "patient", Entity: "p1", HashCode: 9},
		{Action: ActionAdd, Kind: KindUserToEntity, EntityType: "patient", Entity: "p1", User: "alice", HashCode: 1},
		{Action: ActionAdd, Kind: KindGroupToEntity, EntityType: "patient", Entity: "p1", Group: "admins", HashCode: 2},
	}

	for _, e := range cases {
		e.ID = "fixed-id"
		e.OccurredTime = e.OccurredTime.UTC()

		data, err := json.Marshal(e)
		require.NoError(t, err)

		var decoded Event
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Equal(t, e.Kind, decoded.Kind)
		assert.Equal(t, e.Action, decoded.Action)
		assert.Equal(t, e.User, decoded.User)
		assert.Equal(t, e.Group, decoded.Group)
		assert.Equal(t, e.FromGroup, decoded.FromGroup)
		assert.Equal(t, e.ToGroup, decoded.ToGroup)
		assert.Equal(t, e.EntityType, decoded.EntityType)
		assert.Equal(t, e.Entity, decoded.Entity)
		assert.Equal(t, e.HashCode, decoded.HashCode)
	}
}

func TestUnmarshalJSON_NoRecognizedKeys(t *testing.T) {
	raw := []byte(`{"eventId":"x","eventAction":"add","occurredTime":"2026-01-01 00:00:00.0000000","hashCode":1}`)
	var e Event
	err := json.Unmarshal(raw, &e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, accesserr.ErrMalformedEvent))
}

func TestUnmarshalJSON_BadTimestamp(t *testing.T) {
	raw := []byte(`{"eventId":"x","eventAction":"add","occurredTime":"not-a-time","hashCode":1,"user":"alice"}`)
	var e Event
	err := json.Unmarshal(raw, &e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, accesserr.ErrMalformedEvent))
}
