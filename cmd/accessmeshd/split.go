package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/accessmesh/internal/access"
	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/internal/pauser"
	"github.com/cuemby/accessmesh/internal/persist/bolt"
	"github.com/cuemby/accessmesh/internal/shardconfig"
	"github.com/cuemby/accessmesh/internal/split"
	"github.com/cuemby/accessmesh/pkg/log"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Online hash-range split operations",
}

// shardWriter adapts a local (AccessManager, bolt.Store) pair into a
// split.Writer: applying an event both updates the in-memory graph and
// durably persists it, mirroring what a live shard process does on a
// forwarded write.
type shardWriter struct {
	mgr   *access.Manager
	store *bolt.Store
}

func (w *shardWriter) Apply(ctx context.Context, e *event.Event) error {
	if err := w.mgr.Apply(e); err != nil {
		return err
	}
	_, err := w.store.PersistBatch(ctx, []*event.Event{e})
	return err
}

var splitRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive an online split of a hash sub-range from a source shard to a target shard",
	Long: `Moves one contiguous hash sub-range from a source shard's
data directory to a target shard's data directory, in place, through
the full prepare/dual-write/backfill/drain/cutover/cleanup state
machine, updating the shard configuration store's routing table on
success.

Both shards are local bolt-backed stores in this command: it is meant
to exercise and demonstrate the split protocol end to end on one
machine, not to drive a split across a live network deployment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kindFlag, _ := cmd.Flags().GetString("kind")
		lo, _ := cmd.Flags().GetInt32("lo")
		hi, _ := cmd.Flags().GetInt32("hi")
		sourceDir, _ := cmd.Flags().GetString("source-dir")
		targetDir, _ := cmd.Flags().GetString("target-dir")
		newEndpoint, _ := cmd.Flags().GetString("new-endpoint")
		configStorePath, _ := cmd.Flags().GetString("config-store")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		drainInterval, _ := cmd.Flags().GetDuration("drain-interval")
		drainMaxAttempts, _ := cmd.Flags().GetInt("drain-max-attempts")

		var kind shardconfig.Kind
		switch kindFlag {
		case "user":
			kind = shardconfig.KindUser
		case "group":
			kind = shardconfig.KindGroup
		case "grouptogroup":
			kind = shardconfig.KindGroupToGroup
		default:
			return fmt.Errorf("--kind must be 'user', 'group', or 'grouptogroup', got %q", kindFlag)
		}

		sourceStore, err := bolt.Open(filepath.Join(sourceDir, "events.db"))
		if err != nil {
			return fmt.Errorf("opening source event log: %w", err)
		}
		defer sourceStore.Close()

		targetMgr := access.New(access.WithDependencyFreeMode())
		targetStore, err := bolt.Open(filepath.Join(targetDir, "events.db"))
		if err != nil {
			return fmt.Errorf("opening target event log: %w", err)
		}
		defer targetStore.Close()
		if err := targetStore.LoadSnapshot(cmd.Context(), targetMgr.Apply); err != nil {
			return fmt.Errorf("replaying target event log: %w", err)
		}
		target := &shardWriter{mgr: targetMgr, store: targetStore}

		router := split.NewRouter(lo, hi, &shardWriter{mgr: access.New(access.WithDependencyFreeMode()), store: sourceStore})

		var configStore shardconfig.Store
		boltConfigStore, err := shardconfig.OpenBoltStore(configStorePath)
		if err != nil {
			return fmt.Errorf("opening configuration store: %w", err)
		}
		defer boltConfigStore.Close()
		configStore = boltConfigStore

		cfg := split.Config{
			Kind:             kind,
			Lo:               lo,
			Hi:               hi,
			NewEndpoint:      newEndpoint,
			BatchSize:        batchSize,
			Concurrency:      concurrency,
			DrainInterval:    drainInterval,
			DrainMaxAttempts: drainMaxAttempts,
			ActiveOps:        func() int { return 0 },
		}

		orchestrator := split.New(cfg, router, sourceStore, target, pauser.New(), configStore, nil)

		fmt.Printf("Starting split of %s range [%d, %d] -> %s\n", kind, lo, hi, newEndpoint)
		start := time.Now()
		if err := orchestrator.Run(cmd.Context()); err != nil {
			return fmt.Errorf("split aborted after phase %s: %w", orchestrator.Phase(), err)
		}

		fmt.Printf("✓ Split complete in %s (phase: %s)\n", time.Since(start), orchestrator.Phase())
		log.WithComponent("split-cli").Info().
			Str("kind", string(kind)).
			Int32("lo", lo).
			Int32("hi", hi).
			Str("new_endpoint", newEndpoint).
			Msg("split complete")
		return nil
	},
}

func init() {
	splitCmd.AddCommand(splitRunCmd)

	splitRunCmd.Flags().String("kind", "user", "Routing dimension to split: 'user', 'group', or 'grouptogroup'")
	splitRunCmd.Flags().Int32("lo", 0, "Lower bound (inclusive) of the hash sub-range to move")
	splitRunCmd.Flags().Int32("hi", 0, "Upper bound (inclusive) of the hash sub-range to move")
	splitRunCmd.Flags().String("source-dir", "./accessmesh-data", "Source shard's data directory")
	splitRunCmd.Flags().String("target-dir", "./accessmesh-data-target", "Target shard's data directory")
	splitRunCmd.Flags().String("new-endpoint", "shard-new", "Endpoint to assign the moved range to in the configuration store")
	splitRunCmd.Flags().String("config-store", "./accessmesh-data/shardconfig.db", "Path to the shard configuration store")
	splitRunCmd.Flags().Int("batch-size", 500, "Backfill page size")
	splitRunCmd.Flags().Int("concurrency", 4, "Bounded concurrency for per-kind backfill fan-out")
	splitRunCmd.Flags().Duration("drain-interval", 100*time.Millisecond, "Interval between drain polls")
	splitRunCmd.Flags().Int("drain-max-attempts", 50, "Maximum drain polls before aborting the split")
}
