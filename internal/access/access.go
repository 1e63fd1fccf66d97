// Package access implements AccessManager (§4.2), the single source
// of truth for one shard's authorization model: a reachability graph
// of users and groups, plus mapping tables from users/groups to
// application components and entities.
package access

import (
	"fmt"
	"sync"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/internal/graph"
	"github.com/cuemby/accessmesh/internal/shardhash"
	"github.com/cuemby/accessmesh/pkg/accesserr"
	"github.com/cuemby/accessmesh/pkg/log"
)

// componentKey pairs an application component with an access level,
// since the same component can be granted at different levels.
type componentKey struct {
	component string
	level     string
}

// entityKey pairs an entity type with an entity id.
type entityKey struct {
	entityType string
	entity     string
}

// Option configures an AccessManager.
type Option func(*Manager)

// WithStrictMode disables dependency-free prepending: mapping
// operations against an absent user or group fail with ErrNotFound
// instead of silently creating the missing primary element. Use for
// callers that want to catch replay/ordering bugs rather than paper
// over them.
func WithStrictMode() Option {
	return func(m *Manager) { m.dependencyFree = false }
}

// WithDependencyFreeMode is the default: mapping operations against
// an absent user or group first synthesize an Add event for the
// missing element (§4.2), so events can be replayed out of order
// across shards without failing.
func WithDependencyFreeMode() Option {
	return func(m *Manager) { m.dependencyFree = true }
}

// Manager is the hosted authorization model for one shard.
type Manager struct {
	mu sync.RWMutex

	graph          *graph.Graph
	dependencyFree bool

	userComponentAccess  map[string]map[componentKey]struct{}
	groupComponentAccess map[string]map[componentKey]struct{}
	userEntity           map[string]map[entityKey]struct{}
	groupEntity          map[string]map[entityKey]struct{}

	entityTypes map[string]struct{}
	entities    map[entityKey]struct{}
}

// New constructs an empty Manager in dependency-free mode unless
// overridden.
func New(opts ...Option) *Manager {
	m := &Manager{
		graph:          graph.New(graph.WithSilentDuplicates()),
		dependencyFree: true,

		userComponentAccess:  make(map[string]map[componentKey]struct{}),
		groupComponentAccess: make(map[string]map[componentKey]struct{}),
		userEntity:           make(map[string]map[entityKey]struct{}),
		groupEntity:          make(map[string]map[entityKey]struct{}),

		entityTypes: make(map[string]struct{}),
		entities:    make(map[entityKey]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// VertexCounts and EdgeCount satisfy pkg/metrics.GraphSource by
// delegating to the wrapped graph.
func (m *Manager) VertexCounts() (leaves, nonLeaves int) { return m.graph.VertexCounts() }
func (m *Manager) EdgeCount() int                        { return m.graph.EdgeCount() }

// --- primary elements ---

// AddUser adds a user (leaf vertex). Duplicate Add is a no-op.
func (m *Manager) AddUser(u string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.AddLeaf(u)
}

// RemoveUser removes a user and every mapping involving it. Absent
// Remove is a no-op.
func (m *Manager) RemoveUser(u string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.graph.RemoveLeaf(u); err != nil {
		return err
	}
	delete(m.userComponentAccess, u)
	delete(m.userEntity, u)
	return nil
}

// AddGroup adds a group (non-leaf vertex).
func (m *Manager) AddGroup(g string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.AddNonLeaf(g)
}

// RemoveGroup removes a group, all edges touching it, and every
// mapping involving it.
func (m *Manager) RemoveGroup(g string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.graph.RemoveNonLeaf(g); err != nil {
		return err
	}
	delete(m.groupComponentAccess, g)
	delete(m.groupEntity, g)
	return nil
}

// CascadeRemoveUser builds the full ordered sequence of events needed
// to remove u: one Remove event per component-access grant, entity
// grant, and group membership u currently holds, followed by the
// UserRemove event itself. Replaying this sequence — cascades first,
// primary last — reproduces the same end state RemoveUser leaves
// in-memory, so the persisted log stays authoritative over the graph
// even though RemoveUser's own in-memory cleanup happens in one step.
// Must be called (and its result applied) before RemoveUser, since it
// reads the mappings RemoveUser is about to discard.
func (m *Manager) CascadeRemoveUser(u string) []*event.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash := shardhash.Hash(shardhash.CanonicalUser(u))
	var events []*event.Event

	for key := range m.userComponentAccess[u] {
		e := event.New(event.ActionRemove, event.KindUserToComponentAccess, hash)
		e.User, e.ApplicationComponent, e.AccessLevel = u, key.component, key.level
		events = append(events, e)
	}
	for key := range m.userEntity[u] {
		e := event.New(event.ActionRemove, event.KindUserToEntity, hash)
		e.User, e.EntityType, e.Entity = u, key.entityType, key.entity
		events = append(events, e)
	}
	for _, g := range m.graph.DirectForward(u) {
		e := event.New(event.ActionRemove, event.KindUserToGroup, hash)
		e.User, e.Group = u, g
		events = append(events, e)
	}

	primary := event.New(event.ActionRemove, event.KindUser, hash)
	primary.User = u
	return append(events, primary)
}

// CascadeRemoveGroup builds the full ordered sequence of events needed
// to remove g: Remove events for its component-access grants, entity
// grants, outgoing group-to-group edges, and every direct membership
// (user or group) into it, followed by the GroupRemove event itself.
// Must be called before RemoveGroup, for the same reason as
// CascadeRemoveUser.
func (m *Manager) CascadeRemoveGroup(g string) []*event.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash := shardhash.Hash(shardhash.CanonicalGroup(g))
	var events []*event.Event

	for key := range m.groupComponentAccess[g] {
		e := event.New(event.ActionRemove, event.KindGroupToComponentAccess, hash)
		e.Group, e.ApplicationComponent, e.AccessLevel = g, key.component, key.level
		events = append(events, e)
	}
	for key := range m.groupEntity[g] {
		e := event.New(event.ActionRemove, event.KindGroupToEntity, hash)
		e.Group, e.EntityType, e.Entity = g, key.entityType, key.entity
		events = append(events, e)
	}
	for _, to := range m.graph.DirectForward(g) {
		e := event.New(event.ActionRemove, event.KindGroupToGroup, shardhash.Hash(shardhash.CanonicalGroupToGroup(g)))
		e.FromGroup, e.ToGroup = g, to
		events = append(events, e)
	}
	for _, from := range m.graph.DirectReverse(g) {
		if m.graph.ContainsLeaf(from) {
			e := event.New(event.ActionRemove, event.KindUserToGroup, shardhash.Hash(shardhash.CanonicalUser(from)))
			e.User, e.Group = from, g
			events = append(events, e)
			continue
		}
		e := event.New(event.ActionRemove, event.KindGroupToGroup, shardhash.Hash(shardhash.CanonicalGroupToGroup(from)))
		e.FromGroup, e.ToGroup = from, g
		events = append(events, e)
	}

	primary := event.New(event.ActionRemove, event.KindGroup, hash)
	primary.Group = g
	return append(events, primary)
}

// AddEntityType registers an entity type.
func (m *Manager) AddEntityType(entityType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entityTypes[entityType]; ok {
		return nil
	}
	m.entityTypes[entityType] = struct{}{}
	return nil
}

// RemoveEntityType removes an entity type. Absent is a no-op.
func (m *Manager) RemoveEntityType(entityType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entityTypes, entityType)
	return nil
}

// AddEntity registers an entity of a given type.
func (m *Manager) AddEntity(entityType, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entityTypes[entityType]; !ok {
		if !m.dependencyFree {
			return fmt.Errorf("entity type %q: %w", entityType, accesserr.ErrNotFound)
		}
		m.entityTypes[entityType] = struct{}{}
	}
	m.entities[entityKey{entityType, entity}] = struct{}{}
	return nil
}

// RemoveEntity removes an entity and every mapping to it.
func (m *Manager) RemoveEntity(entityType, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entityKey{entityType, entity}
	delete(m.entities, key)
	for u, keys := range m.userEntity {
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.userEntity, u)
		}
	}
	for g, keys := range m.groupEntity {
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.groupEntity, g)
		}
	}
	return nil
}

// --- mappings ---

// AddUserToGroupMapping adds u to g. In dependency-free mode, an
// absent u or g is created first.
func (m *Manager) AddUserToGroupMapping(u, g string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.ContainsLeaf(u) {
		if !m.dependencyFree {
			return fmt.Errorf("user %q: %w", u, accesserr.ErrNotFound)
		}
		if err := m.graph.AddLeaf(u); err != nil {
			return err
		}
	}
	if !m.graph.ContainsNonLeaf(g) {
		if !m.dependencyFree {
			return fmt.Errorf("group %q: %w", g, accesserr.ErrNotFound)
		}
		if err := m.graph.AddNonLeaf(g); err != nil {
			return err
		}
	}
	return m.graph.AddEdge(u, g)
}

// RemoveUserToGroupMapping removes the edge. Absent is a no-op.
func (m *Manager) RemoveUserToGroupMapping(u, g string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.RemoveEdge(u, g)
}

// AddGroupToGroupMapping adds an edge from gf to gt. Fails with
// ErrCycleWouldBeCreated (always surfaced, even in dependency-free
// mode) if gt can already reach gf.
func (m *Manager) AddGroupToGroupMapping(gf, gt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.ContainsNonLeaf(gf) {
		if !m.dependencyFree {
			return fmt.Errorf("group %q: %w", gf, accesserr.ErrNotFound)
		}
		if err := m.graph.AddNonLeaf(gf); err != nil {
			return err
		}
	}
	if !m.graph.ContainsNonLeaf(gt) {
		if !m.dependencyFree {
			return fmt.Errorf("group %q: %w", gt, accesserr.ErrNotFound)
		}
		if err := m.graph.AddNonLeaf(gt); err != nil {
			return err
		}
	}
	return m.graph.AddEdge(gf, gt)
}

// RemoveGroupToGroupMapping removes the edge. Absent is a no-op.
func (m *Manager) RemoveGroupToGroupMapping(gf, gt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.RemoveEdge(gf, gt)
}

// AddUserToComponentAccess grants u access to c at level a.
func (m *Manager) AddUserToComponentAccess(u, c, a string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.ContainsLeaf(u) {
		if !m.dependencyFree {
			return fmt.Errorf("user %q: %w", u, accesserr.ErrNotFound)
		}
		if err := m.graph.AddLeaf(u); err != nil {
			return err
		}
	}
	if m.userComponentAccess[u] == nil {
		m.userComponentAccess[u] = make(map[componentKey]struct{})
	}
	m.userComponentAccess[u][componentKey{c, a}] = struct{}{}
	return nil
}

// RemoveUserToComponentAccess revokes u's access to c at level a.
func (m *Manager) RemoveUserToComponentAccess(u, c, a string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keys, ok := m.userComponentAccess[u]; ok {
		delete(keys, componentKey{c, a})
		if len(keys) == 0 {
			delete(m.userComponentAccess, u)
		}
	}
	return nil
}

// AddGroupToComponentAccess grants g access to c at level a.
func (m *Manager) AddGroupToComponentAccess(g, c, a string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.ContainsNonLeaf(g) {
		if !m.dependencyFree {
			return fmt.Errorf("group %q: %w", g, accesserr.ErrNotFound)
		}
		if err := m.graph.AddNonLeaf(g); err != nil {
			return err
		}
	}
	if m.groupComponentAccess[g] == nil {
		m.groupComponentAccess[g] = make(map[componentKey]struct{})
	}
	m.groupComponentAccess[g][componentKey{c, a}] = struct{}{}
	return nil
}

// RemoveGroupToComponentAccess revokes g's access to c at level a.
func (m *Manager) RemoveGroupToComponentAccess(g, c, a string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keys, ok := m.groupComponentAccess[g]; ok {
		delete(keys, componentKey{c, a})
		if len(keys) == 0 {
			delete(m.groupComponentAccess, g)
		}
	}
	return nil
}

// AddUserToEntity grants u a mapping to entity (entityType, entity).
func (m *Manager) AddUserToEntity(u, entityType, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.ContainsLeaf(u) {
		if !m.dependencyFree {
			return fmt.Errorf("user %q: %w", u, accesserr.ErrNotFound)
		}
		if err := m.graph.AddLeaf(u); err != nil {
			return err
		}
	}
	key := entityKey{entityType, entity}
	m.entityTypes[entityType] = struct{}{}
	m.entities[key] = struct{}{}
	if m.userEntity[u] == nil {
		m.userEntity[u] = make(map[entityKey]struct{})
	}
	m.userEntity[u][key] = struct{}{}
	return nil
}

// RemoveUserToEntity revokes u's mapping to (entityType, entity).
func (m *Manager) RemoveUserToEntity(u, entityType, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keys, ok := m.userEntity[u]; ok {
		delete(keys, entityKey{entityType, entity})
		if len(keys) == 0 {
			delete(m.userEntity, u)
		}
	}
	return nil
}

// AddGroupToEntity grants g a mapping to entity (entityType, entity).
func (m *Manager) AddGroupToEntity(g, entityType, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.ContainsNonLeaf(g) {
		if !m.dependencyFree {
			return fmt.Errorf("group %q: %w", g, accesserr.ErrNotFound)
		}
		if err := m.graph.AddNonLeaf(g); err != nil {
			return err
		}
	}
	key := entityKey{entityType, entity}
	m.entityTypes[entityType] = struct{}{}
	m.entities[key] = struct{}{}
	if m.groupEntity[g] == nil {
		m.groupEntity[g] = make(map[entityKey]struct{})
	}
	m.groupEntity[g][key] = struct{}{}
	return nil
}

// RemoveGroupToEntity revokes g's mapping to (entityType, entity).
func (m *Manager) RemoveGroupToEntity(g, entityType, entity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keys, ok := m.groupEntity[g]; ok {
		delete(keys, entityKey{entityType, entity})
		if len(keys) == 0 {
			delete(m.groupEntity, g)
		}
	}
	return nil
}

// --- containment queries ---

func (m *Manager) ContainsUser(u string) bool {
	return m.graph.ContainsLeaf(u)
}

func (m *Manager) ContainsGroup(g string) bool {
	return m.graph.ContainsNonLeaf(g)
}

func (m *Manager) ContainsUserToGroupMapping(u, g string) bool {
	return m.graph.ContainsEdge(u, g)
}

func (m *Manager) ContainsGroupToGroupMapping(gf, gt string) bool {
	return m.graph.ContainsEdge(gf, gt)
}

// --- reachability-aware queries ---

// HasAccessToComponent reports whether u has access to c at level a,
// either directly or (if includeIndirect) through any reachable group.
func (m *Manager) HasAccessToComponent(u, c, a string, includeIndirect bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := componentKey{c, a}
	if keys, ok := m.userComponentAccess[u]; ok {
		if _, ok := keys[key]; ok {
			return true
		}
	}

	groups := m.groupsForUser(u, includeIndirect)
	for g := range groups {
		if keys, ok := m.groupComponentAccess[g]; ok {
			if _, ok := keys[key]; ok {
				return true
			}
		}
	}
	return false
}

// HasAccessToEntity reports whether u has access to (entityType,
// entity), either directly or through any reachable group.
func (m *Manager) HasAccessToEntity(u, entityType, entity string, includeIndirect bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := entityKey{entityType, entity}
	if keys, ok := m.userEntity[u]; ok {
		if _, ok := keys[key]; ok {
			return true
		}
	}

	groups := m.groupsForUser(u, includeIndirect)
	for g := range groups {
		if keys, ok := m.groupEntity[g]; ok {
			if _, ok := keys[key]; ok {
				return true
			}
		}
	}
	return false
}

// groupsForUser returns u's direct groups when includeIndirect is
// false, or the full transitive closure (direct groups plus every
// group reachable from those via Group->Group edges) when it is
// true. TraverseForward already walks the whole forward graph, so a
// single call yields the full closure; the direct-only case bypasses
// it in favor of the one-hop adjacency lookup.
func (m *Manager) groupsForUser(u string, includeIndirect bool) map[string]struct{} {
	result := make(map[string]struct{})
	if !includeIndirect {
		for _, g := range m.graph.DirectForward(u) {
			result[g] = struct{}{}
		}
		return result
	}
	m.graph.TraverseForward(u, func(v string) bool {
		result[v] = struct{}{}
		return false
	})
	return result
}

// ComponentsAccessibleByUser returns the set of (component, level)
// pairs u can reach, directly or (if includeIndirect) via groups.
func (m *Manager) ComponentsAccessibleByUser(u string, includeIndirect bool) []ComponentAccess {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[componentKey]struct{})
	for key := range m.userComponentAccess[u] {
		seen[key] = struct{}{}
	}
	for g := range m.groupsForUser(u, includeIndirect) {
		for key := range m.groupComponentAccess[g] {
			seen[key] = struct{}{}
		}
	}
	return componentKeysToSlice(seen)
}

// ComponentsAccessibleByGroup returns the set of (component, level)
// pairs g can reach, directly or (if includeIndirect) via subgroups
// reachable from g.
func (m *Manager) ComponentsAccessibleByGroup(g string, includeIndirect bool) []ComponentAccess {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[componentKey]struct{})
	for key := range m.groupComponentAccess[g] {
		seen[key] = struct{}{}
	}
	if includeIndirect {
		m.graph.TraverseForward(g, func(v string) bool {
			for key := range m.groupComponentAccess[v] {
				seen[key] = struct{}{}
			}
			return false
		})
	}
	return componentKeysToSlice(seen)
}

// EntitiesAccessibleByUser returns the entities u can reach, directly
// or (if includeIndirect) via groups, optionally filtered to entityType.
func (m *Manager) EntitiesAccessibleByUser(u, entityType string, includeIndirect bool) []EntityRef {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[entityKey]struct{})
	for key := range m.userEntity[u] {
		seen[key] = struct{}{}
	}
	for g := range m.groupsForUser(u, includeIndirect) {
		for key := range m.groupEntity[g] {
			seen[key] = struct{}{}
		}
	}
	return entityKeysToSlice(seen, entityType)
}

// EntitiesAccessibleByGroup returns the entities g can reach, directly
// or (if includeIndirect) via subgroups, optionally filtered to entityType.
func (m *Manager) EntitiesAccessibleByGroup(g, entityType string, includeIndirect bool) []EntityRef {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[entityKey]struct{})
	for key := range m.groupEntity[g] {
		seen[key] = struct{}{}
	}
	if includeIndirect {
		m.graph.TraverseForward(g, func(v string) bool {
			for key := range m.groupEntity[v] {
				seen[key] = struct{}{}
			}
			return false
		})
	}
	return entityKeysToSlice(seen, entityType)
}

// ComponentAccess is a (component, accessLevel) pair.
type ComponentAccess struct {
	Component   string
	AccessLevel string
}

func componentKeysToSlice(keys map[componentKey]struct{}) []ComponentAccess {
	out := make([]ComponentAccess, 0, len(keys))
	for k := range keys {
		out = append(out, ComponentAccess{Component: k.component, AccessLevel: k.level})
	}
	return out
}

// EntityRef is an (entityType, entity) pair.
type EntityRef struct {
	EntityType string
	Entity     string
}

func entityKeysToSlice(keys map[entityKey]struct{}, filterType string) []EntityRef {
	out := make([]EntityRef, 0, len(keys))
	for k := range keys {
		if filterType != "" && k.entityType != filterType {
			continue
		}
		out = append(out, EntityRef{EntityType: k.entityType, Entity: k.entity})
	}
	return out
}

// Apply replays a single event against the manager, dispatching on
// Kind the way WarrenFSM.Apply dispatches on command name. Used by
// ReaderNode and by split backfill.
func (m *Manager) Apply(e *event.Event) error {
	switch e.Kind {
	case event.KindUser:
		return m.applyPrimary(e, m.AddUser, m.RemoveUser)
	case event.KindGroup:
		return m.applyPrimary(e, m.AddGroup, m.RemoveGroup)
	case event.KindUserToGroup:
		if e.Action == event.ActionAdd {
			return m.AddUserToGroupMapping(e.User, e.Group)
		}
		return m.RemoveUserToGroupMapping(e.User, e.Group)
	case event.KindGroupToGroup:
		if e.Action == event.ActionAdd {
			return m.AddGroupToGroupMapping(e.FromGroup, e.ToGroup)
		}
		return m.RemoveGroupToGroupMapping(e.FromGroup, e.ToGroup)
	case event.KindUserToComponentAccess:
		if e.Action == event.ActionAdd {
			return m.AddUserToComponentAccess(e.User, e.ApplicationComponent, e.AccessLevel)
		}
		return m.RemoveUserToComponentAccess(e.User, e.ApplicationComponent, e.AccessLevel)
	case event.KindGroupToComponentAccess:
		if e.Action == event.ActionAdd {
			return m.AddGroupToComponentAccess(e.Group, e.ApplicationComponent, e.AccessLevel)
		}
		return m.RemoveGroupToComponentAccess(e.Group, e.ApplicationComponent, e.AccessLevel)
	case event.KindEntityType:
		if e.Action == event.ActionAdd {
			return m.AddEntityType(e.EntityType)
		}
		return m.RemoveEntityType(e.EntityType)
	case event.KindEntity:
		if e.Action == event.ActionAdd {
			return m.AddEntity(e.EntityType, e.Entity)
		}
		return m.RemoveEntity(e.EntityType, e.Entity)
	case event.KindUserToEntity:
		if e.Action == event.ActionAdd {
			return m.AddUserToEntity(e.User, e.EntityType, e.Entity)
		}
		return m.RemoveUserToEntity(e.User, e.EntityType, e.Entity)
	case event.KindGroupToEntity:
		if e.Action == event.ActionAdd {
			return m.AddGroupToEntity(e.Group, e.EntityType, e.Entity)
		}
		return m.RemoveGroupToEntity(e.Group, e.EntityType, e.Entity)
	default:
		log.WithComponent("access").Error().Str("kind", string(e.Kind)).Msg("apply called with unknown event kind")
		return fmt.Errorf("unknown event kind %q: %w", e.Kind, accesserr.ErrMalformedEvent)
	}
}

// applyPrimary dispatches a single-argument primary-element event
// (user or group) to its Add or Remove method.
func (m *Manager) applyPrimary(e *event.Event, add, remove func(string) error) error {
	arg := e.User
	if e.Kind == event.KindGroup {
		arg = e.Group
	}
	if e.Action == event.ActionAdd {
		return add(arg)
	}
	return remove(arg)
}
