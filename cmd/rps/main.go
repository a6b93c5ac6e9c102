// rps is a multiplayer rock-paper-scissors match server.
//
// Usage:
//
//	rps serve            - Start the match server (WebSocket, HTTP API, SSH)
//	rps stats <username> - Show stored stats for a player
//	rps users            - List stored players
//	rps config           - Print the default configuration
//
// Global flags:
//
//	--config <path> - Path to server.yaml (default: search ~/.rps, ./configs)
//	--db <path>     - Set database path, or "memory" for an ephemeral store
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/rps-arena/internal/config"
)

var (
	// Global flags
	flagConfig string
	flagDBPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rps",
	Short: "RPS Arena - multiplayer rock-paper-scissors server",
	Long: `RPS Arena matches players for best-of rock-paper-scissors games over
WebSocket or SSH and keeps per-player and head-to-head statistics.

Available commands:
  serve    - Start the match server
  stats    - Show stored stats for a player
  users    - List stored players
  config   - Print the default configuration

Examples:
  rps serve
  rps serve --http :9000 --ssh ""
  rps stats alice
  rps users --db ./rps.db`,
	SilenceUsage: true,
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to server configuration file")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", `Path to database ("memory" for no persistence)`)

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration and applies the global flags on top.
func loadConfig(cmd *cobra.Command) (config.ServerConfig, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("db") {
		if flagDBPath == config.DriverMemory {
			cfg.Store.Driver = config.DriverMemory
		} else {
			cfg.Store.Driver = config.DriverSQLite
			cfg.Store.Path = flagDBPath
		}
	}
	return cfg, cfg.Validate()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the default configuration",
	Long: `Print the embedded default server.yaml. Redirect it to a file to start
a custom configuration:

  rps config > ~/.rps/server.yaml`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Print(string(config.DefaultYAML()))
	},
}
