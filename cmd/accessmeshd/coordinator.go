package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/accessmesh/internal/shardconfig"
	"github.com/cuemby/accessmesh/pkg/log"
	"github.com/cuemby/accessmesh/pkg/metrics"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Coordinator process: routing table, metrics, and health endpoints",
	Long: `Serves the routing table a fan-out layer needs (via /routes)
plus metrics and health endpoints, backed by a standalone
bolt-backed configuration store.

This command deliberately stops at configuration and observability: it
does not dial shards or dispatch requests. A caller that needs live
RouteOne/RouteAll/fan-out dispatch composes internal/coordinator and
internal/shardclient directly, supplying its own shardclient.Transport
implementation for whatever wire protocol its deployment uses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		storePath, _ := cmd.Flags().GetString("config-store")
		httpAddr, _ := cmd.Flags().GetString("http-addr")

		store, err := shardconfig.OpenBoltStore(storePath)
		if err != nil {
			return fmt.Errorf("opening configuration store: %w", err)
		}
		defer store.Close()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("config-store", true, "ready")
		metrics.RegisterComponent("persister", true, "n/a on coordinator")
		metrics.RegisterComponent("breaker", true, "n/a on coordinator")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		mux.HandleFunc("/routes", func(w http.ResponseWriter, r *http.Request) {
			cfg, err := store.Get(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(cfg)
		})

		server := &http.Server{
			Addr:         httpAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithComponent("coordinator").Error().Err(err).Msg("http server error")
			}
		}()

		fmt.Printf("✓ Coordinator started\n")
		fmt.Printf("  Configuration store: %s\n", storePath)
		fmt.Printf("  Endpoints: http://%s/routes, /metrics, /health, /ready, /live\n", httpAddr)
		fmt.Println("Coordinator is running. Press Ctrl+C to stop.")

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
	coordinatorCmd.Flags().String("config-store", "./accessmesh-data/shardconfig.db", "Path to the shard configuration store")
	coordinatorCmd.Flags().String("http-addr", "127.0.0.1:9100", "Address for the routing/metrics/health HTTP server")
}
