// Package shardclient implements ShardClientManager (§4.7): the
// routing table and pooled client handles a coordinator uses to reach
// shard processes. The transport itself — how a handle actually talks
// to a shard over the wire — is an abstract dependency (§1 places the
// concrete REST transport and its middleware out of scope); this
// package only needs something "HTTP-shaped": dial an endpoint, get
// back something you can call.
package shardclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/accessmesh/internal/shardconfig"
	"github.com/cuemby/accessmesh/internal/shardhash"
	"github.com/cuemby/accessmesh/pkg/accesserr"
	"github.com/cuemby/accessmesh/pkg/log"
	"github.com/cuemby/accessmesh/pkg/metrics"
)

// ClientHandle is a usable connection to one shard endpoint. Call
// invokes a named remote operation (e.g. "AddUser",
// "HasAccessToEntity") with an opaque payload and returns an opaque
// result; the concrete encoding is the out-of-scope transport's concern.
type ClientHandle interface {
	Call(ctx context.Context, method string, payload interface{}) (interface{}, error)
	Close() error
}

// Transport dials an endpoint URL and returns a usable ClientHandle.
// This is the "HTTP-shaped client factory" the core depends on as an
// interface without committing to any specific wire protocol.
type Transport interface {
	Dial(endpoint string) (ClientHandle, error)
}

// routingState is swapped atomically by RefreshConfiguration so
// in-flight requests keep using their captured handle/config pair
// while new requests see the new one.
type routingState struct {
	config *shardconfig.Configuration
	pool   map[string]ClientHandle // keyed by endpoint
}

// Manager maintains the routing table and a pool of client handles
// keyed by endpoint, hot-swapped on configuration change.
type Manager struct {
	transport Transport
	state     atomic.Pointer[routingState]

	// poolMu serializes RefreshConfiguration calls so concurrent
	// refreshes can't race on which handles get dialed vs. closed.
	poolMu sync.Mutex
}

// NewManager constructs a Manager with an empty routing table. Call
// RefreshConfiguration before routing any requests.
func NewManager(transport Transport) *Manager {
	m := &Manager{transport: transport}
	m.state.Store(&routingState{
		config: shardconfig.NewConfiguration(),
		pool:   make(map[string]ClientHandle),
	})
	return m
}

// RefreshConfiguration atomically swaps the routing table to cfg,
// dialing any newly-referenced endpoints and closing handles no
// longer referenced by any range. In-flight requests that already
// captured a handle from the old state complete unaffected.
func (m *Manager) RefreshConfiguration(cfg *shardconfig.Configuration) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing invalid shard configuration: %w", err)
	}

	m.poolMu.Lock()
	defer m.poolMu.Unlock()

	old := m.state.Load()

	wanted := make(map[string]struct{})
	for _, kind := range shardconfig.AllKinds {
		for _, ep := range cfg.RouteAll(kind) {
			wanted[ep] = struct{}{}
		}
	}

	newPool := make(map[string]ClientHandle, len(wanted))
	for ep := range wanted {
		if handle, ok := old.pool[ep]; ok {
			newPool[ep] = handle
			continue
		}
		handle, err := m.transport.Dial(ep)
		if err != nil {
			return fmt.Errorf("dialing shard endpoint %q: %w", ep, err)
		}
		newPool[ep] = handle
	}

	m.state.Store(&routingState{config: cfg, pool: newPool})

	for ep, handle := range old.pool {
		if _, stillWanted := wanted[ep]; !stillWanted {
			if err := handle.Close(); err != nil {
				log.WithComponent("shardclient").Error().Err(err).Str("endpoint", ep).Msg("failed to close evicted client handle")
			}
		}
	}

	return nil
}

// RouteOne hashes element's canonical form for kind and returns the
// ClientHandle for the shard owning that hash.
func (m *Manager) RouteOne(kind shardconfig.Kind, element string) (ClientHandle, error) {
	state := m.state.Load()

	h := shardhash.Hash(canonicalize(kind, element))
	endpoint, err := state.config.RouteOne(kind, h)
	if err != nil {
		return nil, err
	}

	handle, ok := state.pool[endpoint]
	if !ok {
		return nil, fmt.Errorf("no pooled client for endpoint %q: %w", endpoint, accesserr.ErrUpstreamUnavailable)
	}
	return handle, nil
}

// RouteAll returns every distinct ClientHandle registered for kind.
func (m *Manager) RouteAll(kind shardconfig.Kind) ([]ClientHandle, error) {
	state := m.state.Load()

	endpoints := state.config.RouteAll(kind)
	handles := make([]ClientHandle, 0, len(endpoints))
	for _, ep := range endpoints {
		handle, ok := state.pool[ep]
		if !ok {
			return nil, fmt.Errorf("no pooled client for endpoint %q: %w", ep, accesserr.ErrUpstreamUnavailable)
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

// Call is a convenience wrapper around RouteOne + ClientHandle.Call
// that also records shard request metrics.
func (m *Manager) Call(ctx context.Context, kind shardconfig.Kind, element, method string, payload interface{}) (interface{}, error) {
	handle, err := m.RouteOne(kind, element)
	if err != nil {
		metrics.ShardRequestsTotal.WithLabelValues(string(kind), "route_error").Inc()
		return nil, err
	}

	timer := metrics.NewTimer()
	result, err := handle.Call(ctx, method, payload)
	timer.ObserveDurationVec(metrics.ShardRequestDuration, string(kind))

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ShardRequestsTotal.WithLabelValues(string(kind), status).Inc()

	return result, err
}

func canonicalize(kind shardconfig.Kind, element string) string {
	switch kind {
	case shardconfig.KindUser:
		return shardhash.CanonicalUser(element)
	case shardconfig.KindGroup:
		return shardhash.CanonicalGroup(element)
	case shardconfig.KindGroupToGroup:
		return shardhash.CanonicalGroupToGroup(element)
	default:
		return element
	}
}
