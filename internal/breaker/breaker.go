// Package breaker implements the "trip switch" (§7, §9): once a
// persister failure trips it, every subsequent request the enclosing
// service handles fails fast with ErrServiceUnavailable until the
// process restarts or a caller explicitly resets it.
package breaker

import (
	"sync/atomic"

	"github.com/cuemby/accessmesh/pkg/accesserr"
	"github.com/cuemby/accessmesh/pkg/log"
	"github.com/cuemby/accessmesh/pkg/metrics"
)

// Mode selects what happens at the moment the switch trips. Exactly
// one mode is chosen at process startup; there is no runtime toggle.
type Mode int

const (
	// ModeReject keeps the process alive; Tripped() becomes true and
	// Guard calls return ErrServiceUnavailable until Reset.
	ModeReject Mode = iota
	// ModeShutdown calls the configured shutdown func once, in
	// addition to behaving like ModeReject for any request that races
	// the shutdown.
	ModeShutdown
)

// Breaker is a trip switch: a single atomic boolean plus a mode that
// decides what happens when it trips. No package-level state — each
// Breaker is an explicit field on whatever owns it.
type Breaker struct {
	tripped  atomic.Bool
	mode     Mode
	shutdown func()
	name     string
}

// New constructs a Breaker in the given mode. shutdown is invoked
// exactly once, from the goroutine that calls Trip, when mode is
// ModeShutdown; it may be nil for ModeReject.
func New(name string, mode Mode, shutdown func()) *Breaker {
	return &Breaker{mode: mode, shutdown: shutdown, name: name}
}

// Trip trips the switch because of cause. Idempotent: tripping an
// already-tripped breaker is a no-op beyond the initial log/metric.
func (b *Breaker) Trip(cause error) {
	if !b.tripped.CompareAndSwap(false, true) {
		return
	}
	metrics.CircuitBreakerTripped.Set(1)
	log.WithComponent("breaker").Error().Str("breaker", b.name).Err(cause).Msg("circuit breaker tripped")
	metrics.RegisterComponent("breaker", false, b.name+" tripped: "+cause.Error())

	if b.mode == ModeShutdown && b.shutdown != nil {
		b.shutdown()
	}
}

// Tripped reports whether the switch is currently tripped, satisfying
// pkg/metrics.BreakerSource.
func (b *Breaker) Tripped() bool {
	return b.tripped.Load()
}

// Guard returns ErrServiceUnavailable if the switch is tripped, nil
// otherwise. Call at the top of any request path that must fail fast
// once the switch has tripped.
func (b *Breaker) Guard() error {
	if b.tripped.Load() {
		return accesserr.ErrServiceUnavailable
	}
	return nil
}

// Reset clears the tripped state. Only meaningful for ModeReject
// (a ModeShutdown breaker's process is going away); exists mainly for
// tests and for an operator-triggered recovery path.
func (b *Breaker) Reset() {
	b.tripped.Store(false)
	metrics.CircuitBreakerTripped.Set(0)
	metrics.RegisterComponent("breaker", true, "")
}
