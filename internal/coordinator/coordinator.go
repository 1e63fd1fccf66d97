// Package coordinator implements OperationCoordinator (§4.8):
// translates a client-level API call into one or more shard calls,
// applying the same dependency-free prepending rules the hosted
// AccessManager uses locally, and fanning out reachability queries
// across group shards with bounded, cancellable parallelism.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/accessmesh/internal/shardclient"
	"github.com/cuemby/accessmesh/internal/shardconfig"
	"github.com/cuemby/accessmesh/pkg/accesserr"
	"github.com/cuemby/accessmesh/pkg/metrics"
)

// Shards is the subset of shardclient.Manager the coordinator needs,
// narrowed to ease testing with a fake.
type Shards interface {
	RouteOne(kind shardconfig.Kind, element string) (shardclient.ClientHandle, error)
	RouteAll(kind shardconfig.Kind) ([]shardclient.ClientHandle, error)
}

// Coordinator dispatches client-level operations to the shards that
// own the elements involved.
type Coordinator struct {
	shards      Shards
	fanoutLimit int
}

// New constructs a Coordinator. fanoutLimit bounds how many group
// shards a reachability query queries concurrently; 0 means
// unbounded.
func New(shards Shards, fanoutLimit int) *Coordinator {
	return &Coordinator{shards: shards, fanoutLimit: fanoutLimit}
}

func (c *Coordinator) call(ctx context.Context, kind shardconfig.Kind, element, method string, payload interface{}) (interface{}, error) {
	handle, err := c.shards.RouteOne(kind, element)
	if err != nil {
		return nil, fmt.Errorf("routing %s %q: %w", kind, element, err)
	}
	result, err := handle.Call(ctx, method, payload)
	if err != nil {
		return nil, fmt.Errorf("calling %s on shard for %s %q: %w", method, kind, element, accesserr.ErrUpstreamUnavailable)
	}
	return result, nil
}

// --- primary elements ---

// AddUser forwards to the shard owning u.
func (c *Coordinator) AddUser(ctx context.Context, u string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "AddUser", map[string]string{"user": u})
	return err
}

// AddGroup forwards to the shard owning g on the group dimension, then
// also prepends g across every group-to-group shard: group-to-group
// mappings route on their own dimension (shardconfig.KindGroupToGroup), a
// different hash space than g's own group-kind shard, so an edge
// landing on some other group-to-group shard still finds g already
// present there.
func (c *Coordinator) AddGroup(ctx context.Context, g string) error {
	if _, err := c.call(ctx, shardconfig.KindGroup, g, "AddGroup", map[string]string{"group": g}); err != nil {
		return err
	}

	handles, err := c.shards.RouteAll(shardconfig.KindGroupToGroup)
	if err != nil {
		return fmt.Errorf("listing group-to-group shards: %w", err)
	}

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(c.limit())
	for _, h := range handles {
		h := h
		group.Go(func() error {
			_, err := h.Call(ctx, "AddGroup", map[string]string{"group": g})
			if err != nil {
				return fmt.Errorf("prepending AddGroup: %w", accesserr.ErrUpstreamUnavailable)
			}
			return nil
		})
	}
	return group.Wait()
}

// AddUserToGroupMapping routes to the shard owning u (§4.8); that
// shard's AccessManager prepends the missing user/group itself in
// dependency-free mode.
func (c *Coordinator) AddUserToGroupMapping(ctx context.Context, u, g string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "AddUserToGroupMapping", map[string]string{"user": u, "group": g})
	return err
}

// AddGroupToGroupMapping routes to the group-to-group shard owning
// the "from" group — its own routing dimension, independent of
// whichever group shard owns gf's own record.
func (c *Coordinator) AddGroupToGroupMapping(ctx context.Context, gf, gt string) error {
	_, err := c.call(ctx, shardconfig.KindGroupToGroup, gf, "AddGroupToGroupMapping", map[string]string{"fromGroup": gf, "toGroup": gt})
	return err
}

// AddUserToComponentAccess routes to the shard owning u.
func (c *Coordinator) AddUserToComponentAccess(ctx context.Context, u, component, level string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "AddUserToComponentAccess",
		map[string]string{"user": u, "applicationComponent": component, "accessLevel": level})
	return err
}

// AddGroupToComponentAccess routes to the shard owning g.
func (c *Coordinator) AddGroupToComponentAccess(ctx context.Context, g, component, level string) error {
	_, err := c.call(ctx, shardconfig.KindGroup, g, "AddGroupToComponentAccess",
		map[string]string{"group": g, "applicationComponent": component, "accessLevel": level})
	return err
}

// AddUserToEntity routes to the shard owning u.
func (c *Coordinator) AddUserToEntity(ctx context.Context, u, entityType, entity string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "AddUserToEntity",
		map[string]string{"user": u, "entityType": entityType, "entity": entity})
	return err
}

// AddGroupToEntity routes to the shard owning g.
func (c *Coordinator) AddGroupToEntity(ctx context.Context, g, entityType, entity string) error {
	_, err := c.call(ctx, shardconfig.KindGroup, g, "AddGroupToEntity",
		map[string]string{"group": g, "entityType": entityType, "entity": entity})
	return err
}

// AddEntityType broadcasts to every shard: entity types aren't
// partitioned by hash like users or groups, so every shard's
// AccessManager keeps its own copy of the catalog to validate
// user/group->entity mappings locally.
func (c *Coordinator) AddEntityType(ctx context.Context, entityType string) error {
	return c.broadcastAll(ctx, "AddEntityType", map[string]string{"entityType": entityType})
}

// AddEntity broadcasts to every shard, for the same reason as AddEntityType.
func (c *Coordinator) AddEntity(ctx context.Context, entityType, entity string) error {
	return c.broadcastAll(ctx, "AddEntity", map[string]string{"entityType": entityType, "entity": entity})
}

// --- removals ---

// RemoveUser forwards to the shard owning u.
func (c *Coordinator) RemoveUser(ctx context.Context, u string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "RemoveUser", map[string]string{"user": u})
	return err
}

// RemoveGroup mirrors AddGroup: it forwards to the shard owning g on
// the group dimension, then removes g's prepended copy from every
// group-to-group shard too, so no shard is left holding a group that
// no longer exists.
func (c *Coordinator) RemoveGroup(ctx context.Context, g string) error {
	if _, err := c.call(ctx, shardconfig.KindGroup, g, "RemoveGroup", map[string]string{"group": g}); err != nil {
		return err
	}

	handles, err := c.shards.RouteAll(shardconfig.KindGroupToGroup)
	if err != nil {
		return fmt.Errorf("listing group-to-group shards: %w", err)
	}

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(c.limit())
	for _, h := range handles {
		h := h
		group.Go(func() error {
			_, err := h.Call(ctx, "RemoveGroup", map[string]string{"group": g})
			if err != nil {
				return fmt.Errorf("removing prepended group: %w", accesserr.ErrUpstreamUnavailable)
			}
			return nil
		})
	}
	return group.Wait()
}

// RemoveUserToGroupMapping routes to the shard owning u, symmetric with
// AddUserToGroupMapping.
func (c *Coordinator) RemoveUserToGroupMapping(ctx context.Context, u, g string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "RemoveUserToGroupMapping", map[string]string{"user": u, "group": g})
	return err
}

// RemoveGroupToGroupMapping routes to the group-to-group shard owning
// gf, symmetric with AddGroupToGroupMapping.
func (c *Coordinator) RemoveGroupToGroupMapping(ctx context.Context, gf, gt string) error {
	_, err := c.call(ctx, shardconfig.KindGroupToGroup, gf, "RemoveGroupToGroupMapping", map[string]string{"fromGroup": gf, "toGroup": gt})
	return err
}

// RemoveUserToComponentAccess routes to the shard owning u.
func (c *Coordinator) RemoveUserToComponentAccess(ctx context.Context, u, component, level string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "RemoveUserToComponentAccess",
		map[string]string{"user": u, "applicationComponent": component, "accessLevel": level})
	return err
}

// RemoveGroupToComponentAccess routes to the shard owning g.
func (c *Coordinator) RemoveGroupToComponentAccess(ctx context.Context, g, component, level string) error {
	_, err := c.call(ctx, shardconfig.KindGroup, g, "RemoveGroupToComponentAccess",
		map[string]string{"group": g, "applicationComponent": component, "accessLevel": level})
	return err
}

// RemoveUserToEntity routes to the shard owning u.
func (c *Coordinator) RemoveUserToEntity(ctx context.Context, u, entityType, entity string) error {
	_, err := c.call(ctx, shardconfig.KindUser, u, "RemoveUserToEntity",
		map[string]string{"user": u, "entityType": entityType, "entity": entity})
	return err
}

// RemoveGroupToEntity routes to the shard owning g.
func (c *Coordinator) RemoveGroupToEntity(ctx context.Context, g, entityType, entity string) error {
	_, err := c.call(ctx, shardconfig.KindGroup, g, "RemoveGroupToEntity",
		map[string]string{"group": g, "entityType": entityType, "entity": entity})
	return err
}

// RemoveEntityType broadcasts to every shard, symmetric with AddEntityType.
func (c *Coordinator) RemoveEntityType(ctx context.Context, entityType string) error {
	return c.broadcastAll(ctx, "RemoveEntityType", map[string]string{"entityType": entityType})
}

// RemoveEntity broadcasts to every shard, symmetric with AddEntity.
func (c *Coordinator) RemoveEntity(ctx context.Context, entityType, entity string) error {
	return c.broadcastAll(ctx, "RemoveEntity", map[string]string{"entityType": entityType, "entity": entity})
}

// broadcastAll dispatches method to every distinct shard endpoint
// across every routing dimension, deduplicated by handle identity
// (the same endpoint is reachable under more than one kind). Used for
// mutations to state that every shard's AccessManager keeps its own
// full copy of, rather than partitioning by hash.
func (c *Coordinator) broadcastAll(ctx context.Context, method string, payload interface{}) error {
	seen := make(map[shardclient.ClientHandle]struct{})
	var handles []shardclient.ClientHandle
	for _, kind := range shardconfig.AllKinds {
		hs, err := c.shards.RouteAll(kind)
		if err != nil {
			return fmt.Errorf("listing %s shards: %w", kind, err)
		}
		for _, h := range hs {
			if _, dup := seen[h]; !dup {
				seen[h] = struct{}{}
				handles = append(handles, h)
			}
		}
	}

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(c.limit())
	for _, h := range handles {
		h := h
		group.Go(func() error {
			if _, err := h.Call(ctx, method, payload); err != nil {
				return fmt.Errorf("broadcasting %s: %w", method, accesserr.ErrUpstreamUnavailable)
			}
			return nil
		})
	}
	return group.Wait()
}

// --- containment queries ---

// ContainsUser routes to the shard owning u.
func (c *Coordinator) ContainsUser(ctx context.Context, u string) (bool, error) {
	return c.callBool(ctx, shardconfig.KindUser, u, "ContainsUser", map[string]string{"user": u})
}

// ContainsGroup routes to the shard owning g.
func (c *Coordinator) ContainsGroup(ctx context.Context, g string) (bool, error) {
	return c.callBool(ctx, shardconfig.KindGroup, g, "ContainsGroup", map[string]string{"group": g})
}

// ContainsUserToGroupMapping routes to the shard owning u: user->group
// mappings are stored alongside the user, the same as AddUserToGroupMapping.
func (c *Coordinator) ContainsUserToGroupMapping(ctx context.Context, u, g string) (bool, error) {
	return c.callBool(ctx, shardconfig.KindUser, u, "ContainsUserToGroupMapping", map[string]string{"user": u, "group": g})
}

// ContainsGroupToGroupMapping routes to the group-to-group shard owning gf.
func (c *Coordinator) ContainsGroupToGroupMapping(ctx context.Context, gf, gt string) (bool, error) {
	return c.callBool(ctx, shardconfig.KindGroupToGroup, gf, "ContainsGroupToGroupMapping", map[string]string{"fromGroup": gf, "toGroup": gt})
}

func (c *Coordinator) callBool(ctx context.Context, kind shardconfig.Kind, element, method string, payload interface{}) (bool, error) {
	raw, err := c.call(ctx, kind, element, method, payload)
	if err != nil {
		return false, err
	}
	result, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected response shape from %s shard: %w", kind, accesserr.ErrMalformedEvent)
	}
	return result, nil
}

// --- reachability queries ---

// directAccessResult is what a single user-shard call returns for a
// reachability-aware query: a direct answer plus the set of groups
// reachable from the user, for the coordinator to fan out across.
type directAccessResult struct {
	Direct bool     `json:"direct"`
	Groups []string `json:"groups"`
}

// HasAccessToEntity queries the user's shard for a direct answer and
// its reachable group set, then — if the direct answer is false —
// fans out to each reachable group's shard in parallel, short-circuiting
// on the first true. Any transport error aborts the whole request with
// ErrUpstreamUnavailable; a shard reporting "not found" contributes an
// empty (false) result instead of failing the request.
func (c *Coordinator) HasAccessToEntity(ctx context.Context, u, entityType, entity string) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CoordinatorFanoutDuration, "HasAccessToEntity")

	raw, err := c.call(ctx, shardconfig.KindUser, u, "UserAccessToEntity",
		map[string]string{"user": u, "entityType": entityType, "entity": entity})
	if err != nil {
		return false, err
	}

	result, ok := raw.(directAccessResult)
	if !ok {
		return false, fmt.Errorf("unexpected response shape from user shard: %w", accesserr.ErrMalformedEvent)
	}
	if result.Direct {
		return true, nil
	}

	return c.fanOutAny(ctx, shardconfig.KindGroup, result.Groups, "GroupAccessToEntity", func(g string) interface{} {
		return map[string]string{"group": g, "entityType": entityType, "entity": entity}
	})
}

// HasAccessToComponent mirrors HasAccessToEntity for component access.
func (c *Coordinator) HasAccessToComponent(ctx context.Context, u, component, level string) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CoordinatorFanoutDuration, "HasAccessToComponent")

	raw, err := c.call(ctx, shardconfig.KindUser, u, "UserAccessToComponent",
		map[string]string{"user": u, "applicationComponent": component, "accessLevel": level})
	if err != nil {
		return false, err
	}

	result, ok := raw.(directAccessResult)
	if !ok {
		return false, fmt.Errorf("unexpected response shape from user shard: %w", accesserr.ErrMalformedEvent)
	}
	if result.Direct {
		return true, nil
	}

	return c.fanOutAny(ctx, shardconfig.KindGroup, result.Groups, "GroupAccessToComponent", func(g string) interface{} {
		return map[string]string{"group": g, "applicationComponent": component, "accessLevel": level}
	})
}

// ComponentAccessDTO is a (component, accessLevel) pair as returned by
// a shard's accessible-by query.
type ComponentAccessDTO struct {
	Component   string `json:"component"`
	AccessLevel string `json:"accessLevel"`
}

// EntityRefDTO identifies one (entityType, entity) pair as returned by
// a shard's accessible-by query.
type EntityRefDTO struct {
	EntityType string `json:"entityType"`
	Entity     string `json:"entity"`
}

// componentsAccessibleResult is what a user shard returns for
// ComponentsAccessibleByUser: its own direct grants plus the set of
// groups reachable from the user, for the coordinator to fan out
// across and union.
type componentsAccessibleResult struct {
	Direct []ComponentAccessDTO `json:"direct"`
	Groups []string             `json:"groups"`
}

// entitiesAccessibleResult mirrors componentsAccessibleResult for
// entity grants.
type entitiesAccessibleResult struct {
	Direct []EntityRefDTO `json:"direct"`
	Groups []string       `json:"groups"`
}

// ComponentsAccessibleByUser queries u's shard for its direct grants
// plus u's reachable group set, then fans out to each reachable
// group's own shard for that group's grants, unioning everything.
func (c *Coordinator) ComponentsAccessibleByUser(ctx context.Context, u string) ([]ComponentAccessDTO, error) {
	raw, err := c.call(ctx, shardconfig.KindUser, u, "ComponentsAccessibleByUser", map[string]string{"user": u})
	if err != nil {
		return nil, err
	}
	result, ok := raw.(componentsAccessibleResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape from user shard: %w", accesserr.ErrMalformedEvent)
	}

	perGroup := make([][]ComponentAccessDTO, len(result.Groups))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.limit())
	for i, g := range result.Groups {
		i, g := i, g
		group.Go(func() error {
			cas, err := c.componentsAccessibleByGroup(gctx, g)
			if err != nil {
				return err
			}
			perGroup[i] = cas
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[ComponentAccessDTO]struct{}, len(result.Direct))
	out := make([]ComponentAccessDTO, 0, len(result.Direct))
	add := func(ca ComponentAccessDTO) {
		if _, dup := seen[ca]; !dup {
			seen[ca] = struct{}{}
			out = append(out, ca)
		}
	}
	for _, ca := range result.Direct {
		add(ca)
	}
	for _, cas := range perGroup {
		for _, ca := range cas {
			add(ca)
		}
	}
	return out, nil
}

// ComponentsAccessibleByGroup routes to the shard owning g.
func (c *Coordinator) ComponentsAccessibleByGroup(ctx context.Context, g string) ([]ComponentAccessDTO, error) {
	return c.componentsAccessibleByGroup(ctx, g)
}

func (c *Coordinator) componentsAccessibleByGroup(ctx context.Context, g string) ([]ComponentAccessDTO, error) {
	raw, err := c.call(ctx, shardconfig.KindGroup, g, "ComponentsAccessibleByGroup", map[string]string{"group": g})
	if err != nil {
		return nil, err
	}
	cas, ok := raw.([]ComponentAccessDTO)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape from group shard: %w", accesserr.ErrMalformedEvent)
	}
	return cas, nil
}

// EntitiesAccessibleByUser mirrors ComponentsAccessibleByUser for
// entity grants, optionally filtered to entityType (empty means all
// types).
func (c *Coordinator) EntitiesAccessibleByUser(ctx context.Context, u, entityType string) ([]EntityRefDTO, error) {
	raw, err := c.call(ctx, shardconfig.KindUser, u, "EntitiesAccessibleByUser",
		map[string]string{"user": u, "entityType": entityType})
	if err != nil {
		return nil, err
	}
	result, ok := raw.(entitiesAccessibleResult)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape from user shard: %w", accesserr.ErrMalformedEvent)
	}

	perGroup := make([][]EntityRefDTO, len(result.Groups))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.limit())
	for i, g := range result.Groups {
		i, g := i, g
		group.Go(func() error {
			refs, err := c.entitiesAccessibleByGroup(gctx, g, entityType)
			if err != nil {
				return err
			}
			perGroup[i] = refs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[EntityRefDTO]struct{}, len(result.Direct))
	out := make([]EntityRefDTO, 0, len(result.Direct))
	add := func(ref EntityRefDTO) {
		if _, dup := seen[ref]; !dup {
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	for _, ref := range result.Direct {
		add(ref)
	}
	for _, refs := range perGroup {
		for _, ref := range refs {
			add(ref)
		}
	}
	return out, nil
}

// EntitiesAccessibleByGroup routes to the shard owning g.
func (c *Coordinator) EntitiesAccessibleByGroup(ctx context.Context, g, entityType string) ([]EntityRefDTO, error) {
	return c.entitiesAccessibleByGroup(ctx, g, entityType)
}

func (c *Coordinator) entitiesAccessibleByGroup(ctx context.Context, g, entityType string) ([]EntityRefDTO, error) {
	raw, err := c.call(ctx, shardconfig.KindGroup, g, "EntitiesAccessibleByGroup",
		map[string]string{"group": g, "entityType": entityType})
	if err != nil {
		return nil, err
	}
	refs, ok := raw.([]EntityRefDTO)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape from group shard: %w", accesserr.ErrMalformedEvent)
	}
	return refs, nil
}

// fanOutAny dispatches method to every element in elements (bounded by
// c.limit() concurrent in-flight calls), returning true as soon as any
// shard responds true, cancelling the rest. A call failing with
// ErrNotFound counts as a false answer; any other error on a call
// aborts the whole fan-out with ErrUpstreamUnavailable; the first
// error (transport or otherwise) observed after cancellation-for-success
// is suppressed, since a true answer already resolves the query.
func (c *Coordinator) fanOutAny(ctx context.Context, kind shardconfig.Kind, elements []string, method string, payloadFor func(string) interface{}) (bool, error) {
	if len(elements) == 0 {
		return false, nil
	}

	fanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(fanCtx)
	group.SetLimit(c.limit())

	found := make(chan struct{}, 1)

	for _, el := range elements {
		el := el
		group.Go(func() error {
			handle, err := c.shards.RouteOne(kind, el)
			if err != nil {
				return fmt.Errorf("routing %s %q: %w", kind, el, err)
			}
			res, err := handle.Call(gctx, method, payloadFor(el))
			if err != nil {
				if errors.Is(gctx.Err(), context.Canceled) {
					return nil // a sibling already found a match
				}
				if errors.Is(err, accesserr.ErrNotFound) {
					return nil // the shard does not know el: a false answer
				}
				return fmt.Errorf("calling %s: %w", method, accesserr.ErrUpstreamUnavailable)
			}
			if ok, _ := res.(bool); ok {
				select {
				case found <- struct{}{}:
				default:
				}
				cancel()
			}
			return nil
		})
	}

	waitErr := group.Wait()

	select {
	case <-found:
		return true, nil
	default:
	}

	if waitErr != nil {
		return false, waitErr
	}
	return false, nil
}

func (c *Coordinator) limit() int {
	if c.fanoutLimit <= 0 {
		return -1 // errgroup treats a negative SetLimit as unbounded
	}
	return c.fanoutLimit
}
