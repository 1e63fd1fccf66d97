// Command accessmeshd runs one node of the authorization mesh: a
// shard process (AccessManager + event pipeline) or a coordinator
// process (routing table, metrics and health endpoints), plus the admin subcommands used
// to stand up shard configuration and drive an online split.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/accessmesh/pkg/log"
)

var (
	// Version information, set via ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "accessmeshd",
	Short: "accessmesh authorization service node",
	Long: `accessmeshd runs a single node of a horizontally-sharded
authorization graph service: either a write/read shard holding a slice
of the user/group reachability graph, or a coordinator that serves
the shard routing table plus metrics and health endpoints.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"accessmeshd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(shardCmd)
	rootCmd.AddCommand(coordinatorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(splitCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
