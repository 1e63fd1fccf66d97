package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/accessmesh/internal/shardconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Shard configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Build and persist an initial evenly-split shard configuration",
	Long: `Divides the full hash space [0, 2^31-1] into N equal
contiguous ranges per routing dimension (user, group, group-to-group) and assigns one
endpoint per range, then persists the result to a bolt-backed
configuration store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		storePath, _ := cmd.Flags().GetString("store")
		endpointsFlag, _ := cmd.Flags().GetString("endpoints")

		endpoints := strings.Split(endpointsFlag, ",")
		for i := range endpoints {
			endpoints[i] = strings.TrimSpace(endpoints[i])
		}
		if len(endpoints) == 0 || endpoints[0] == "" {
			return fmt.Errorf("--endpoints must list at least one shard endpoint")
		}

		cfg := shardconfig.NewConfiguration()
		cfg.Generation = 1
		for _, kind := range shardconfig.AllKinds {
			cfg.Ranges[kind] = evenSplit(endpoints)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("built configuration is invalid: %w", err)
		}

		store, err := shardconfig.OpenBoltStore(storePath)
		if err != nil {
			return fmt.Errorf("opening configuration store: %w", err)
		}
		defer store.Close()

		if err := store.Put(cmd.Context(), cfg); err != nil {
			return fmt.Errorf("persisting configuration: %w", err)
		}

		fmt.Printf("✓ Initialized configuration (generation %d) across %d endpoints\n", cfg.Generation, len(endpoints))
		for _, kind := range shardconfig.AllKinds {
			fmt.Printf("  %s:\n", kind)
			for _, r := range cfg.Ranges[kind] {
				fmt.Printf("    [%d, %d] -> %s\n", r.Lo, r.Hi, r.Endpoint)
			}
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current shard configuration as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		storePath, _ := cmd.Flags().GetString("store")

		store, err := shardconfig.OpenBoltStore(storePath)
		if err != nil {
			return fmt.Errorf("opening configuration store: %w", err)
		}
		defer store.Close()

		cfg, err := store.Get(context.Background())
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// evenSplit divides the full hash space into len(endpoints) equal
// contiguous ranges, assigning one endpoint per range in order.
func evenSplit(endpoints []string) []shardconfig.Range {
	n := int64(len(endpoints))
	span := int64(shardconfig.HashHi-shardconfig.HashLo) + 1
	width := span / n

	ranges := make([]shardconfig.Range, 0, n)
	lo := int64(shardconfig.HashLo)
	for i := int64(0); i < n; i++ {
		hi := lo + width - 1
		if i == n-1 {
			hi = int64(shardconfig.HashHi)
		}
		ranges = append(ranges, shardconfig.Range{
			Lo:       int32(lo),
			Hi:       int32(hi),
			Endpoint: endpoints[i],
		})
		lo = hi + 1
	}
	return ranges
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().String("store", "./accessmesh-data/shardconfig.db", "Path to the configuration store")
	configInitCmd.Flags().String("endpoints", "shard-1", "Comma-separated list of shard endpoints to split the hash space across")

	configShowCmd.Flags().String("store", "./accessmesh-data/shardconfig.db", "Path to the configuration store")
}
