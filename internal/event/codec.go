package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireEvent is the JSON-on-the-wire shape (§6): a flat dictionary
// whose key presence, not an explicit type tag, selects the Kind.
// Absent optional fields are omitted rather than sent as empty
// strings, since presence itself carries meaning.
type wireEvent struct {
	ID           string `json:"eventId"`
	Action       string `json:"eventAction"`
	OccurredTime string `json:"occurredTime"`
	HashCode     int32  `json:"hashCode"`

	User                 string `json:"user,omitempty"`
	Group                string `json:"group,omitempty"`
	FromGroup            string `json:"fromGroup,omitempty"`
	ToGroup              string `json:"toGroup,omitempty"`
	ApplicationComponent string `json:"applicationComponent,omitempty"`
	AccessLevel          string `json:"accessLevel,omitempty"`
	EntityType           string `json:"entityType,omitempty"`
	Entity               string `json:"entity,omitempty"`
}

// MarshalJSON writes the event in the §6 wire dictionary shape.
func (e *Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:                   e.ID,
		Action:               string(e.Action),
		OccurredTime:         e.OccurredTime.UTC().Format(OccurredTimeLayout),
		HashCode:             e.HashCode,
		User:                 e.User,
		Group:                e.Group,
		FromGroup:            e.FromGroup,
		ToGroup:              e.ToGroup,
		ApplicationComponent: e.ApplicationComponent,
		AccessLevel:          e.AccessLevel,
		EntityType:           e.EntityType,
		Entity:               e.Entity,
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the §6 wire dictionary and dispatches Kind by
// which keys are present, per the table:
//
//	entityType alone                                  -> EntityType
//	entityType + entity                               -> Entity
//	entityType + entity + user                        -> UserToEntity
//	entityType + entity + group                       -> GroupToEntity
//	user alone                                        -> User
//	user + group                                      -> UserToGroup
//	user + applicationComponent + accessLevel         -> UserToComponentAccess
//	group alone                                       -> Group
//	group + applicationComponent + accessLevel        -> GroupToComponentAccess
//	fromGroup + toGroup                               -> GroupToGroup
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding event: %w", errMalformedEvent)
	}

	occurred, err := time.Parse(OccurredTimeLayout, w.OccurredTime)
	if err != nil {
		return fmt.Errorf("parsing occurredTime %q: %w", w.OccurredTime, errMalformedEvent)
	}

	kind, err := classify(w)
	if err != nil {
		return err
	}

	e.ID = w.ID
	e.Action = Action(w.Action)
	e.Kind = kind
	e.OccurredTime = occurred
	e.HashCode = w.HashCode
	e.User = w.User
	e.Group = w.Group
	e.FromGroup = w.FromGroup
	e.ToGroup = w.ToGroup
	e.ApplicationComponent = w.ApplicationComponent
	e.AccessLevel = w.AccessLevel
	e.EntityType = w.EntityType
	e.Entity = w.Entity

	return e.Validate()
}

// classify selects a Kind from which wire keys are present, in order
// of most-specific combination first, matching the §6 dispatch table.
func classify(w wireEvent) (Kind, error) {
	switch {
	case w.FromGroup != "" && w.ToGroup != "":
		return KindGroupToGroup, nil
	case w.EntityType != "" && w.Entity != "" && w.User != "":
		return KindUserToEntity, nil
	case w.EntityType != "" && w.Entity != "" && w.Group != "":
		return KindGroupToEntity, nil
	case w.EntityType != "" && w.Entity != "":
		return KindEntity, nil
	case w.EntityType != "":
		return KindEntityType, nil
	case w.User != "" && w.ApplicationComponent != "" && w.AccessLevel != "":
		return KindUserToComponentAccess, nil
	case w.Group != "" && w.ApplicationComponent != "" && w.AccessLevel != "":
		return KindGroupToComponentAccess, nil
	case w.User != "" && w.Group != "":
		return KindUserToGroup, nil
	case w.User != "":
		return KindUser, nil
	case w.Group != "":
		return KindGroup, nil
	default:
		return "", fmt.Errorf("no recognized key combination: %w", errMalformedEvent)
	}
}
