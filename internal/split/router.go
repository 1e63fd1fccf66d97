// Package split implements the online split protocol (§4.9):
// OperationRouter mirrors mutations into a newly-created target shard
// group while SplitOrchestrator backfills, drains, and cuts traffic
// over to it, all with bounded unavailability and no lost mutation in
// the moving range.
package split

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

// Mode is the Router's current posture toward the moving hash range.
type Mode int

const (
	// ModeForwardOnly sends everything to source, unconditionally.
	// This is the Router's starting and aborted-back-to state.
	ModeForwardOnly Mode = iota
	// ModeDualWrite mirrors any event whose hash falls in [Lo,Hi] to
	// both source and target, idempotently.
	ModeDualWrite
	// ModeCutover sends events whose hash falls in [Lo,Hi] to target
	// only; everything else still goes to source.
	ModeCutover
)

// Writer applies a single event to a shard's write path. Both the
// source and target sides of a Router are Writers; PersistBatch-backed
// writers are idempotent by event ID, which is what makes dual-write
// mirroring and backfill replay safe to repeat.
type Writer interface {
	Apply(ctx context.Context, e *event.Event) error
}

// Router sits in front of a source shard's write path for the
// duration of a split, routing each incoming event to source, target,
// or both depending on its current Mode and whether the event's hash
// falls inside the range under migration.
type Router struct {
	lo, hi int32

	mu     sync.RWMutex
	mode   Mode
	source Writer
	target Writer
}

// NewRouter constructs a Router for the hash range [lo,hi], initially
// in ModeForwardOnly against source. SetTarget must be called before
// the mode advances past ModeForwardOnly.
func NewRouter(lo, hi int32, source Writer) *Router {
	return &Router{lo: lo, hi: hi, mode: ModeForwardOnly, source: source}
}

// SetTarget wires the target shard group's write path once it exists
// (end of Prepare).
func (r *Router) SetTarget(target Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

// SetMode advances or reverts the Router's posture. SplitOrchestrator
// is the only caller; exported so tests and cmd/accessmeshd admin
// paths can drive it directly too.
func (r *Router) SetMode(m Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = m
}

// Mode returns the Router's current posture.
func (r *Router) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

func (r *Router) inRange(hash int32) bool {
	return hash >= r.lo && hash <= r.hi
}

// Route applies e via source, target, or both, per the current Mode
// and whether hash falls in the range under migration. hash is the
// caller's already-computed canonical hash of e.PrimaryElement() (the
// Router doesn't recompute it, to stay decoupled from shardhash).
func (r *Router) Route(ctx context.Context, e *event.Event, hash int32) error {
	r.mu.RLock()
	mode, source, target := r.mode, r.source, r.target
	r.mu.RUnlock()

	if !r.inRange(hash) {
		return source.Apply(ctx, e)
	}

	switch mode {
	case ModeForwardOnly:
		return source.Apply(ctx, e)
	case ModeDualWrite:
		if err := source.Apply(ctx, e); err != nil {
			return fmt.Errorf("dual-write to source: %w", err)
		}
		if target == nil {
			return nil
		}
		if err := target.Apply(ctx, e); err != nil {
			return fmt.Errorf("dual-write to target: %w", err)
		}
		return nil
	case ModeCutover:
		if target == nil {
			return fmt.Errorf("cutover mode with no target wired: %w", accesserr.ErrSplitAborted)
		}
		return target.Apply(ctx, e)
	default:
		return fmt.Errorf("unknown router mode %d: %w", mode, accesserr.ErrSplitAborted)
	}
}
