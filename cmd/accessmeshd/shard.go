package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/accessmesh/internal/access"
	"github.com/cuemby/accessmesh/internal/breaker"
	"github.com/cuemby/accessmesh/internal/eventbuffer"
	"github.com/cuemby/accessmesh/internal/eventcache"
	"github.com/cuemby/accessmesh/internal/persist/bolt"
	"github.com/cuemby/accessmesh/internal/reader"
	"github.com/cuemby/accessmesh/pkg/log"
	"github.com/cuemby/accessmesh/pkg/metrics"
)

var shardCmd = &cobra.Command{
	Use:   "shard",
	Short: "Writer/reader shard operations",
}

var shardStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a writer shard: AccessManager, EventBuffer, FlushStrategy, bolt persister",
	Long: `Starts one shard process holding a slice of the reachability
graph. Mutations apply to the in-memory AccessManager immediately and
are durably flushed to the bolt-backed event log by the FlushStrategy,
either when the events buffered across all kinds reach the size threshold or on the
background flush interval, whichever comes first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shardID, _ := cmd.Flags().GetString("shard-id")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		flushThreshold, _ := cmd.Flags().GetInt("flush-threshold")
		flushInterval, _ := cmd.Flags().GetDuration("flush-interval")
		breakerModeFlag, _ := cmd.Flags().GetString("breaker-mode")
		cacheCapacity, _ := cmd.Flags().GetInt("cache-capacity")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		strictMode, _ := cmd.Flags().GetBool("strict-mode")

		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		var breakerMode breaker.Mode
		switch breakerModeFlag {
		case "reject":
			breakerMode = breaker.ModeReject
		case "shutdown":
			breakerMode = breaker.ModeShutdown
		default:
			return fmt.Errorf("--breaker-mode must be 'reject' or 'shutdown', got %q", breakerModeFlag)
		}

		shutdownCh := make(chan struct{})
		brk := breaker.New(shardID, breakerMode, func() { close(shutdownCh) })

		var managerOpt access.Option
		if strictMode {
			managerOpt = access.WithStrictMode()
		} else {
			managerOpt = access.WithDependencyFreeMode()
		}
		mgr := access.New(managerOpt)

		store, err := bolt.Open(filepath.Join(dataDir, "events.db"))
		if err != nil {
			return fmt.Errorf("opening event log: %w", err)
		}
		defer store.Close()

		if err := store.LoadSnapshot(cmd.Context(), mgr.Apply); err != nil {
			return fmt.Errorf("replaying event log into access manager: %w", err)
		}

		buf := eventbuffer.New()
		flush := eventbuffer.NewFlushStrategy(buf, store, brk, flushThreshold, eventbuffer.WithLoopInterval(flushInterval))
		svc := access.NewService(mgr, flush)

		cache := eventcache.New(cacheCapacity)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		flush.Start(ctx)
		defer flush.Stop()

		collector := metrics.NewCollector(mgr, buf, cache, brk)
		collector.Start()
		defer collector.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("persister", true, "ready")
		metrics.RegisterComponent("breaker", !brk.Tripped(), "ok")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		mux.Handle("/mutate", mutateHandler(svc))
		server := &http.Server{
			Addr:         metricsAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithComponent("shard").Error().Err(err).Msg("metrics server error")
			}
		}()

		fmt.Printf("✓ Shard %q started\n", shardID)
		fmt.Printf("  Data directory: %s\n", dataDir)
		fmt.Printf("  Flush threshold: %d, interval: %s\n", flushThreshold, flushInterval)
		fmt.Printf("  Metrics/health: http://%s/metrics, /health, /ready, /live\n", metricsAddr)
		fmt.Println("Shard is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case <-shutdownCh:
			fmt.Println("\nCircuit breaker requested shutdown...")
		}

		_ = server.Close()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

// mutateRequest is the wire shape for the shard's write entrypoint: a
// method name matching one of access.Service.Mutate's cases plus its
// string-keyed arguments.
type mutateRequest struct {
	Method  string            `json:"method"`
	Payload map[string]string `json:"payload"`
}

// mutateHandler is the live write path into a running shard: it
// applies a mutation to svc's AccessManager and enqueues the
// resulting event(s) for the FlushStrategy to persist, rather than
// only ever seeing new state via LoadSnapshot on the next restart.
func mutateHandler(svc *access.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req mutateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
			return
		}
		if err := svc.Mutate(req.Method, req.Payload); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

var shardReaderCmd = &cobra.Command{
	Use:   "reader",
	Short: "Start a read-replica shard polling an existing event log",
	Long: `Starts a ReaderNode against the same bolt-backed event log a
writer shard appends to. The reader never writes; it polls on an
interval, consulting the temporal cache first and falling back to the
persister, then replays events into its own AccessManager.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shardID, _ := cmd.Flags().GetString("shard-id")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		cacheCapacity, _ := cmd.Flags().GetInt("cache-capacity")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		mgr := access.New(access.WithDependencyFreeMode())

		store, err := bolt.Open(filepath.Join(dataDir, "events.db"))
		if err != nil {
			return fmt.Errorf("opening event log: %w", err)
		}
		defer store.Close()

		if err := store.LoadSnapshot(cmd.Context(), mgr.Apply); err != nil {
			return fmt.Errorf("replaying event log into access manager: %w", err)
		}

		cache := eventcache.New(cacheCapacity)
		node := reader.New(mgr, cache, store, pollInterval)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		node.Start(ctx)
		defer node.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("persister", true, "ready")
		metrics.RegisterComponent("breaker", true, "n/a on reader")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithComponent("shard-reader").Error().Err(err).Msg("metrics server error")
			}
		}()

		fmt.Printf("✓ Reader shard %q started, polling every %s\n", shardID, pollInterval)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		_ = server.Close()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	shardCmd.AddCommand(shardStartCmd)
	shardCmd.AddCommand(shardReaderCmd)

	shardStartCmd.Flags().String("shard-id", "shard-1", "Unique shard identifier")
	shardStartCmd.Flags().String("data-dir", "./accessmesh-data", "Data directory for the event log")
	shardStartCmd.Flags().Int("flush-threshold", 100, "Total buffered events, across all kinds, that trigger an immediate flush")
	shardStartCmd.Flags().Duration("flush-interval", 2*time.Second, "Background flush loop interval")
	shardStartCmd.Flags().String("breaker-mode", "reject", "Circuit breaker behavior on persister failure: 'reject' or 'shutdown'")
	shardStartCmd.Flags().Int("cache-capacity", 4096, "Temporal event cache retained event count")
	shardStartCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	shardStartCmd.Flags().Bool("strict-mode", false, "Reject mutations referencing missing users/groups instead of dependency-free prepending")

	shardReaderCmd.Flags().String("shard-id", "shard-1-reader", "Unique shard identifier")
	shardReaderCmd.Flags().String("data-dir", "./accessmesh-data", "Data directory for the event log (shared with the writer)")
	shardReaderCmd.Flags().Duration("poll-interval", 500*time.Millisecond, "Interval between poll cycles")
	shardReaderCmd.Flags().Int("cache-capacity", 4096, "Temporal event cache retained event count")
	shardReaderCmd.Flags().String("metrics-addr", "127.0.0.1:9091", "Address for the metrics/health HTTP server")
}
