package access

import (
	"fmt"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/internal/shardhash"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

// Enqueuer is the subset of eventbuffer.FlushStrategy a Service needs:
// hand a newly-applied event off for durable, asynchronous persistence.
type Enqueuer interface {
	Enqueue(e *event.Event)
}

// Service is the write-path facade that turns a client-level mutation
// into both an immediate in-memory Manager update and a durably
// enqueued Event, so a mutation survives a restart instead of only
// living in memory until the next flush happens to catch it. Every
// method here is the one production entrypoint a shard process should
// call for a new write — as opposed to Manager.Apply, which is for
// replaying events that are already durable.
type Service struct {
	mgr *Manager
	enq Enqueuer
}

// NewService wires mgr's mutations to enq's durable queue.
func NewService(mgr *Manager, enq Enqueuer) *Service {
	return &Service{mgr: mgr, enq: enq}
}

// apply applies e to the manager and, only once that succeeds,
// enqueues it for persistence — an event that failed to apply never
// reaches the log.
func (s *Service) apply(e *event.Event) error {
	if err := s.mgr.Apply(e); err != nil {
		return err
	}
	s.enq.Enqueue(e)
	return nil
}

func (s *Service) AddUser(u string) error {
	e := event.New(event.ActionAdd, event.KindUser, shardhash.Hash(shardhash.CanonicalUser(u)))
	e.User = u
	return s.apply(e)
}

// RemoveUser applies and enqueues the full cascade CascadeRemoveUser
// builds, in order, so the primary Remove only lands once every
// dependent mapping has already been unwound.
func (s *Service) RemoveUser(u string) error {
	for _, e := range s.mgr.CascadeRemoveUser(u) {
		if err := s.apply(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) AddGroup(g string) error {
	e := event.New(event.ActionAdd, event.KindGroup, shardhash.Hash(shardhash.CanonicalGroup(g)))
	e.Group = g
	return s.apply(e)
}

// RemoveGroup applies and enqueues the full cascade CascadeRemoveGroup
// builds.
func (s *Service) RemoveGroup(g string) error {
	for _, e := range s.mgr.CascadeRemoveGroup(g) {
		if err := s.apply(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) AddEntityType(entityType string) error {
	e := event.New(event.ActionAdd, event.KindEntityType, shardhash.Hash(entityType))
	e.EntityType = entityType
	return s.apply(e)
}

func (s *Service) RemoveEntityType(entityType string) error {
	e := event.New(event.ActionRemove, event.KindEntityType, shardhash.Hash(entityType))
	e.EntityType = entityType
	return s.apply(e)
}

func (s *Service) AddEntity(entityType, entity string) error {
	e := event.New(event.ActionAdd, event.KindEntity, shardhash.Hash(shardhash.CanonicalEntity(entityType, entity)))
	e.EntityType, e.Entity = entityType, entity
	return s.apply(e)
}

func (s *Service) RemoveEntity(entityType, entity string) error {
	e := event.New(event.ActionRemove, event.KindEntity, shardhash.Hash(shardhash.CanonicalEntity(entityType, entity)))
	e.EntityType, e.Entity = entityType, entity
	return s.apply(e)
}

func (s *Service) AddUserToGroupMapping(u, g string) error {
	e := event.New(event.ActionAdd, event.KindUserToGroup, shardhash.Hash(shardhash.CanonicalUser(u)))
	e.User, e.Group = u, g
	return s.apply(e)
}

func (s *Service) RemoveUserToGroupMapping(u, g string) error {
	e := event.New(event.ActionRemove, event.KindUserToGroup, shardhash.Hash(shardhash.CanonicalUser(u)))
	e.User, e.Group = u, g
	return s.apply(e)
}

func (s *Service) AddGroupToGroupMapping(gf, gt string) error {
	e := event.New(event.ActionAdd, event.KindGroupToGroup, shardhash.Hash(shardhash.CanonicalGroupToGroup(gf)))
	e.FromGroup, e.ToGroup = gf, gt
	return s.apply(e)
}

func (s *Service) RemoveGroupToGroupMapping(gf, gt string) error {
	e := event.New(event.ActionRemove, event.KindGroupToGroup, shardhash.Hash(shardhash.CanonicalGroupToGroup(gf)))
	e.FromGroup, e.ToGroup = gf, gt
	return s.apply(e)
}

func (s *Service) AddUserToComponentAccess(u, component, level string) error {
	e := event.New(event.ActionAdd, event.KindUserToComponentAccess, shardhash.Hash(shardhash.CanonicalUser(u)))
	e.User, e.ApplicationComponent, e.AccessLevel = u, component, level
	return s.apply(e)
}

func (s *Service) RemoveUserToComponentAccess(u, component, level string) error {
	e := event.New(event.ActionRemove, event.KindUserToComponentAccess, shardhash.Hash(shardhash.CanonicalUser(u)))
	e.User, e.ApplicationComponent, e.AccessLevel = u, component, level
	return s.apply(e)
}

func (s *Service) AddGroupToComponentAccess(g, component, level string) error {
	e := event.New(event.ActionAdd, event.KindGroupToComponentAccess, shardhash.Hash(shardhash.CanonicalGroup(g)))
	e.Group, e.ApplicationComponent, e.AccessLevel = g, component, level
	return s.apply(e)
}

func (s *Service) RemoveGroupToComponentAccess(g, component, level string) error {
	e := event.New(event.ActionRemove, event.KindGroupToComponentAccess, shardhash.Hash(shardhash.CanonicalGroup(g)))
	e.Group, e.ApplicationComponent, e.AccessLevel = g, component, level
	return s.apply(e)
}

func (s *Service) AddUserToEntity(u, entityType, entity string) error {
	e := event.New(event.ActionAdd, event.KindUserToEntity, shardhash.Hash(shardhash.CanonicalUser(u)))
	e.User, e.EntityType, e.Entity = u, entityType, entity
	return s.apply(e)
}

func (s *Service) RemoveUserToEntity(u, entityType, entity string) error {
	e := event.New(event.ActionRemove, event.KindUserToEntity, shardhash.Hash(shardhash.CanonicalUser(u)))
	e.User, e.EntityType, e.Entity = u, entityType, entity
	return s.apply(e)
}

func (s *Service) AddGroupToEntity(g, entityType, entity string) error {
	e := event.New(event.ActionAdd, event.KindGroupToEntity, shardhash.Hash(shardhash.CanonicalGroup(g)))
	e.Group, e.EntityType, e.Entity = g, entityType, entity
	return s.apply(e)
}

func (s *Service) RemoveGroupToEntity(g, entityType, entity string) error {
	e := event.New(event.ActionRemove, event.KindGroupToEntity, shardhash.Hash(shardhash.CanonicalGroup(g)))
	e.Group, e.EntityType, e.Entity = g, entityType, entity
	return s.apply(e)
}

// Mutate dispatches a named write operation against a string-keyed
// payload, matching the shape a shardclient.ClientHandle call arrives
// in. It is the counterpart to Manager.Apply for events that don't
// exist yet: where Apply replays something the log already agreed on,
// Mutate is where a new mutation is born.
func (s *Service) Mutate(method string, payload map[string]string) error {
	switch method {
	case "AddUser":
		return s.AddUser(payload["user"])
	case "RemoveUser":
		return s.RemoveUser(payload["user"])
	case "AddGroup":
		return s.AddGroup(payload["group"])
	case "RemoveGroup":
		return s.RemoveGroup(payload["group"])
	case "AddEntityType":
		return s.AddEntityType(payload["entityType"])
	case "RemoveEntityType":
		return s.RemoveEntityType(payload["entityType"])
	case "AddEntity":
		return s.AddEntity(payload["entityType"], payload["entity"])
	case "RemoveEntity":
		return s.RemoveEntity(payload["entityType"], payload["entity"])
	case "AddUserToGroupMapping":
		return s.AddUserToGroupMapping(payload["user"], payload["group"])
	case "RemoveUserToGroupMapping":
		return s.RemoveUserToGroupMapping(payload["user"], payload["group"])
	case "AddGroupToGroupMapping":
		return s.AddGroupToGroupMapping(payload["fromGroup"], payload["toGroup"])
	case "RemoveGroupToGroupMapping":
		return s.RemoveGroupToGroupMapping(payload["fromGroup"], payload["toGroup"])
	case "AddUserToComponentAccess":
		return s.AddUserToComponentAccess(payload["user"], payload["applicationComponent"], payload["accessLevel"])
	case "RemoveUserToComponentAccess":
		return s.RemoveUserToComponentAccess(payload["user"], payload["applicationComponent"], payload["accessLevel"])
	case "AddGroupToComponentAccess":
		return s.AddGroupToComponentAccess(payload["group"], payload["applicationComponent"], payload["accessLevel"])
	case "RemoveGroupToComponentAccess":
		return s.RemoveGroupToComponentAccess(payload["group"], payload["applicationComponent"], payload["accessLevel"])
	case "AddUserToEntity":
		return s.AddUserToEntity(payload["user"], payload["entityType"], payload["entity"])
	case "RemoveUserToEntity":
		return s.RemoveUserToEntity(payload["user"], payload["entityType"], payload["entity"])
	case "AddGroupToEntity":
		return s.AddGroupToEntity(payload["group"], payload["entityType"], payload["entity"])
	case "RemoveGroupToEntity":
		return s.RemoveGroupToEntity(payload["group"], payload["entityType"], payload["entity"])
	default:
		return fmt.Errorf("unknown mutation method %q: %w", method, accesserr.ErrMalformedEvent)
	}
}
