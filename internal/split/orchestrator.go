package split

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/internal/pauser"
	"github.com/cuemby/accessmesh/internal/shardclient"
	"github.com/cuemby/accessmesh/internal/shardconfig"
	"github.com/cuemby/accessmesh/pkg/accesserr"
	"github.com/cuemby/accessmesh/pkg/log"
)

// Phase names a state of the split state machine (§4.9).
type Phase string

const (
	PhasePrepare   Phase = "prepare"
	PhaseDualWrite Phase = "dual_write"
	PhaseBackfill  Phase = "backfill"
	PhaseDrain     Phase = "drain"
	PhaseCutover   Phase = "cutover"
	PhaseCleanup   Phase = "cleanup"
	PhaseDone      Phase = "done"
	PhaseAborted   Phase = "aborted"
)

// SourcePersister is the subset of persist.EventPersister the
// orchestrator needs to read the moving range out of source and,
// after cutover, drop it.
type SourcePersister interface {
	GetEventsInHashRange(ctx context.Context, kind event.Kind, hashLo, hashHi int32, sinceTxTime time.Time) ([]*event.Event, error)
	DeleteEventsInHashRange(ctx context.Context, kind event.Kind, hashLo, hashHi int32, beforeTxTime time.Time) error
}

// eventKindsFor lists the event kinds whose PrimaryElement is hashed
// on the given shard routing dimension. EntityType/Entity events have
// no user or group owner and are out of split scope: they are shared
// reference data replicated to every shard rather than partitioned,
// so no range of them ever needs to move.
func eventKindsFor(kind shardconfig.Kind) []event.Kind {
	switch kind {
	case shardconfig.KindUser:
		return []event.Kind{event.KindUser, event.KindUserToGroup, event.KindUserToComponentAccess, event.KindUserToEntity}
	case shardconfig.KindGroup:
		return []event.Kind{event.KindGroup, event.KindGroupToComponentAccess, event.KindGroupToEntity}
	case shardconfig.KindGroupToGroup:
		return []event.Kind{event.KindGroupToGroup}
	default:
		return nil
	}
}

// Config parameterizes one split run.
type Config struct {
	Kind      shardconfig.Kind
	Lo, Hi    int32
	// NewEndpoint is the target shard group's client-facing address,
	// written into ShardConfiguration at Cleanup.
	NewEndpoint string

	BatchSize   int
	Concurrency int

	DrainInterval    time.Duration
	DrainMaxAttempts int
	// ActiveOps reports the source writer's in-flight operation count
	// against the moving range; Drain polls this until it reaches zero.
	ActiveOps func() int
}

// Orchestrator drives one split end to end: Prepare, Dual-write,
// Backfill, Drain, Cutover, Cleanup.
type Orchestrator struct {
	cfg    Config
	router *Router
	source SourcePersister
	target Writer
	pauser *pauser.Pauser

	configStore  shardconfig.Store
	shardClients *shardclient.Manager

	mu    sync.Mutex
	phase Phase
}

// New constructs an Orchestrator. configStore and shardClients may be
// nil, in which case Cleanup skips the global configuration update
// (useful for tests and for callers that apply the configuration
// change out of band).
func New(cfg Config, router *Router, source SourcePersister, target Writer, p *pauser.Pauser, configStore shardconfig.Store, shardClients *shardclient.Manager) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		router:       router,
		source:       source,
		target:       target,
		pauser:       p,
		configStore:  configStore,
		shardClients: shardClients,
		phase:        PhasePrepare,
	}
}

// Phase returns the orchestrator's current state.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	log.WithComponent("split").Info().Str("phase", string(p)).Str("kind", string(o.cfg.Kind)).Msg("split phase transition")
}

// Run executes the full protocol. On any failure before Cutover, Run
// reverts the Router to ModeForwardOnly and returns an error wrapping
// ErrSplitAborted, leaving the system identical to Prepare's
// precondition. Once Cutover succeeds, the split is committed: a
// Cleanup failure is reported but does not roll back traffic.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.router.SetTarget(o.target)

	o.setPhase(PhaseDualWrite)
	o.router.SetMode(ModeDualWrite)

	o.setPhase(PhaseBackfill)
	watermark, err := o.backfill(ctx, time.Time{})
	if err != nil {
		return o.abort(fmt.Errorf("backfill failed: %w", err))
	}

	o.setPhase(PhaseDrain)
	if err := o.drain(ctx); err != nil {
		return o.abort(fmt.Errorf("drain failed: %w", err))
	}

	o.setPhase(PhaseCutover)
	watermark, err = o.cutover(ctx, watermark)
	if err != nil {
		return o.abort(fmt.Errorf("cutover failed: %w", err))
	}

	o.setPhase(PhaseCleanup)
	if err := o.cleanup(ctx, watermark); err != nil {
		return fmt.Errorf("cutover committed but cleanup failed, retry cleanup independently: %w", err)
	}

	o.setPhase(PhaseDone)
	return nil
}

// backfill copies every event in [Lo,Hi] with transaction time after
// since from source to target, one goroutine per relevant event kind
// bounded by cfg.Concurrency. Each goroutine queries again from the
// last transaction time it saw while a call returns at least
// cfg.BatchSize events; how many events one call returns is up to the
// source. It
// returns the latest transaction time observed, the watermark the
// next phase resumes from.
func (o *Orchestrator) backfill(ctx context.Context, since time.Time) (time.Time, error) {
	kinds := eventKindsFor(o.cfg.Kind)

	var mu sync.Mutex
	watermark := since

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.limit())

	for _, kind := range kinds {
		kind := kind
		group.Go(func() error {
			cursor := since
			for {
				batch, err := o.source.GetEventsInHashRange(gctx, kind, o.cfg.Lo, o.cfg.Hi, cursor)
				if err != nil {
					return fmt.Errorf("reading backfill batch for kind %s: %w", kind, err)
				}
				if len(batch) == 0 {
					return nil
				}

				for _, e := range batch {
					if err := o.target.Apply(gctx, e); err != nil {
						return fmt.Errorf("applying backfilled event %s to target: %w", e.ID, err)
					}
				}

				last := batch[len(batch)-1].TransactionTime
				mu.Lock()
				if last.After(watermark) {
					watermark = last
				}
				mu.Unlock()
				cursor = last

				if len(batch) < o.cfg.BatchSize {
					return nil
				}
			}
		})
	}

	if err := group.Wait(); err != nil {
		return time.Time{}, err
	}
	return watermark, nil
}

// drain polls ActiveOps until it reports zero in-flight operations
// against the moving range, retrying up to DrainMaxAttempts at
// DrainInterval. A non-zero count after the last attempt aborts the
// split cleanly rather than blocking indefinitely.
func (o *Orchestrator) drain(ctx context.Context) error {
	if o.cfg.ActiveOps == nil {
		return nil
	}

	attempts := o.cfg.DrainMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if o.cfg.ActiveOps() == 0 {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.DrainInterval):
		}
	}
	return fmt.Errorf("active operations on source did not drain after %d attempts: %w", attempts, accesserr.ErrSplitAborted)
}

// cutover pauses matching requests, copies the final delta since
// watermark, flips the Router to target-only, then resumes. The pause
// is the protocol's single synchronization point: once Resume runs,
// every subsequent matching request sees target as authoritative, and
// every request already past its checkpoint was still served against
// the pre-cutover Router posture (dual-write), so no mutation is lost.
func (o *Orchestrator) cutover(ctx context.Context, since time.Time) (time.Time, error) {
	o.pauser.Pause()
	defer o.pauser.Resume()

	watermark, err := o.backfill(ctx, since)
	if err != nil {
		return time.Time{}, fmt.Errorf("copying final delta: %w", err)
	}

	o.router.SetMode(ModeCutover)
	return watermark, nil
}

// cleanup drops the moved range from source and, if a configuration
// store and client manager were wired, updates the global
// ShardConfiguration to point the moved range at NewEndpoint and
// refreshes routing. Events newer than beforeTxTime are intentionally
// not dropped: DeleteEventsInHashRange's "before" boundary protects
// any write source still races through Route concurrently with
// cleanup immediately after cutover.
func (o *Orchestrator) cleanup(ctx context.Context, beforeTxTime time.Time) error {
	for _, kind := range eventKindsFor(o.cfg.Kind) {
		if err := o.source.DeleteEventsInHashRange(ctx, kind, o.cfg.Lo, o.cfg.Hi, beforeTxTime); err != nil {
			return fmt.Errorf("deleting moved range for kind %s: %w", kind, err)
		}
	}

	if o.configStore == nil {
		return nil
	}

	current, err := o.configStore.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading current shard configuration: %w", err)
	}

	updated := current.Clone()
	ranges := updated.Ranges[o.cfg.Kind]
	moved := false
	for i := range ranges {
		if ranges[i].Lo == o.cfg.Lo && ranges[i].Hi == o.cfg.Hi {
			ranges[i].Endpoint = o.cfg.NewEndpoint
			moved = true
			break
		}
	}
	if !moved {
		return fmt.Errorf("no existing range [%d,%d] to retarget in configuration", o.cfg.Lo, o.cfg.Hi)
	}
	updated.Generation++

	if err := updated.Validate(); err != nil {
		return fmt.Errorf("updated configuration is invalid: %w", err)
	}
	if err := o.configStore.Put(ctx, updated); err != nil {
		return fmt.Errorf("persisting updated shard configuration: %w", err)
	}

	if o.shardClients != nil {
		if err := o.shardClients.RefreshConfiguration(updated); err != nil {
			return fmt.Errorf("refreshing shard client routing: %w", err)
		}
	}
	return nil
}

// abort reverts the Router to ModeForwardOnly, discarding any
// dual-write mirroring to target, and marks the split aborted. Per
// the protocol's invariant, this is only ever called before Cutover,
// so source alone remains authoritative and the system returns to
// Prepare's precondition.
func (o *Orchestrator) abort(cause error) error {
	o.router.SetMode(ModeForwardOnly)
	o.setPhase(PhaseAborted)
	log.WithComponent("split").Error().Err(cause).Msg("split aborted, reverted to source")
	return fmt.Errorf("%w: %v", accesserr.ErrSplitAborted, cause)
}

func (o *Orchestrator) limit() int {
	if o.cfg.Concurrency <= 0 {
		return -1
	}
	return o.cfg.Concurrency
}
