// Package event defines the durable, replayable mutation record shared
// by every tier of accessmesh: the event buffer, the temporal cache,
// the persister, and the reader node. Its wire format (§6 of the
// specification this package implements) is the interoperability
// contract between writer shards, reader shards, and the reference
// persister — every field name and key-presence rule below is
// load-bearing, not incidental.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/accessmesh/pkg/accesserr"
)

// errMalformedEvent is the sentinel Validate and the codec wrap their
// messages around; callers match it with errors.Is against
// accesserr.ErrMalformedEvent.
var errMalformedEvent = accesserr.ErrMalformedEvent

// Action is the mutation direction an event represents.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Kind identifies which of the ten primary/mapping event shapes an
// Event carries, selected by which wire keys are present (§6).
type Kind string

const (
	KindUser                   Kind = "user"
	KindGroup                  Kind = "group"
	KindUserToGroup            Kind = "user_to_group"
	KindGroupToGroup           Kind = "group_to_group"
	KindUserToComponentAccess  Kind = "user_to_component_access"
	KindGroupToComponentAccess Kind = "group_to_component_access"
	KindEntityType             Kind = "entity_type"
	KindEntity                 Kind = "entity"
	KindUserToEntity           Kind = "user_to_entity"
	KindGroupToEntity          Kind = "group_to_entity"
)

// AllKinds lists the ten event kinds, in the order EventBuffer assigns
// them independent FIFO queues (§4.3).
var AllKinds = []Kind{
	KindUser,
	KindGroup,
	KindUserToGroup,
	KindGroupToGroup,
	KindUserToComponentAccess,
	KindGroupToComponentAccess,
	KindEntityType,
	KindEntity,
	KindUserToEntity,
	KindGroupToEntity,
}

// OccurredTimeLayout is the wire format for Event.OccurredTime:
// 100-nanosecond precision, UTC, per §6.
const OccurredTimeLayout = "2006-01-02 15:04:05.0000000"

// Event is a single durable mutation record.
type Event struct {
	ID           string
	Action       Action
	Kind         Kind
	OccurredTime time.Time
	HashCode     int32

	User                 string
	Group                string
	FromGroup            string
	ToGroup              string
	ApplicationComponent string
	AccessLevel          string
	EntityType           string
	Entity               string

	// TransactionTime and TransactionSequence are assigned by the
	// persister on append (§4.5, §6); zero until persisted.
	TransactionTime     time.Time
	TransactionSequence int64
}

// New constructs an Event with a freshly generated id and the current
// time truncated to the wire format's precision. HashCode must be
// supplied by the caller — it is computed over the element's canonical
// string form by internal/shardhash, not by this package, to keep the
// hash contract in one place.
func New(action Action, kind Kind, hashCode int32) *Event {
	return &Event{
		ID:           uuid.NewString(),
		Action:       action,
		Kind:         kind,
		OccurredTime: time.Now().UTC().Truncate(100 * time.Nanosecond),
		HashCode:     hashCode,
	}
}

// PrimaryElement returns the element identifier this event's hash code
// is computed over, used by split range matching (§4.9) and routing
// (§4.7). For mapping events it is the "owning" element: the user or
// group on the left of the mapping.
func (e *Event) PrimaryElement() string {
	switch e.Kind {
	case KindUser, KindUserToGroup, KindUserToComponentAccess, KindUserToEntity:
		return e.User
	case KindGroup, KindGroupToComponentAccess, KindGroupToEntity:
		return e.Group
	case KindGroupToGroup:
		return e.FromGroup
	case KindEntityType:
		return e.EntityType
	case KindEntity:
		return e.EntityType + "/" + e.Entity
	default:
		return ""
	}
}

// Validate checks that e.Kind is one of the ten known kinds, that the
// keys that kind requires are present, and that e.Action is add or
// remove, returning ErrMalformedEvent (via a wrapped message)
// otherwise. Beyond the required keys it rejects only a group on a
// user event, a user on a group event, an entity on an entity-type
// event, and a user or group on an entity event; any other extra key
// is accepted.
func (e *Event) Validate() error {
	switch e.Kind {
	case KindUser:
		if e.User == "" || e.Group != "" {
			return malformed("user event requires user and no group")
		}
	case KindGroup:
		if e.Group == "" || e.User != "" {
			return malformed("group event requires group and no user")
		}
	case KindUserToGroup:
		if e.User == "" || e.Group == "" {
			return malformed("user-to-group event requires user and group")
		}
	case KindGroupToGroup:
		if e.FromGroup == "" || e.ToGroup == "" {
			return malformed("group-to-group event requires fromGroup and toGroup")
		}
	case KindUserToComponentAccess:
		if e.User == "" || e.ApplicationComponent == "" || e.AccessLevel == "" {
			return malformed("user-to-component event requires user, applicationComponent, accessLevel")
		}
	case KindGroupToComponentAccess:
		if e.Group == "" || e.ApplicationComponent == "" || e.AccessLevel == "" {
			return malformed("group-to-component event requires group, applicationComponent, accessLevel")
		}
	case KindEntityType:
		if e.EntityType == "" || e.Entity != "" {
			return malformed("entity-type event requires entityType and no entity")
		}
	case KindEntity:
		if e.EntityType == "" || e.Entity == "" || e.User != "" || e.Group != "" {
			return malformed("entity event requires entityType and entity, no user/group")
		}
	case KindUserToEntity:
		if e.EntityType == "" || e.Entity == "" || e.User == "" {
			return malformed("user-to-entity event requires entityType, entity, user")
		}
	case KindGroupToEntity:
		if e.EntityType == "" || e.Entity == "" || e.Group == "" {
			return malformed("group-to-entity event requires entityType, entity, group")
		}
	default:
		return malformed(fmt.Sprintf("unknown event kind %q", e.Kind))
	}
	if e.Action != ActionAdd && e.Action != ActionRemove {
		return malformed(fmt.Sprintf("unknown event action %q", e.Action))
	}
	return nil
}

func malformed(msg string) error {
	return fmt.Errorf("%s: %w", msg, errMalformedEvent)
}
