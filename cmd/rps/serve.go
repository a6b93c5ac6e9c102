package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/rps-arena/internal/transport"
)

var (
	flagHTTPAddr string
	flagSSHAddr  string
	flagHostKey  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the match server",
	Long: `Start the match server. Clients connect over WebSocket at /ws or over SSH
and exchange one JSON object per message.

Endpoints:
  /ws                       - WebSocket game protocol
  /api/users/{username}     - Stored profile
  /api/users/{u}/stats      - Derived stats
  /api/h2h/{a}/{b}          - Head-to-head tally
  /metrics                  - Prometheus metrics
  /healthz                  - Liveness probe

Examples:
  rps serve                          # Use configuration defaults
  rps serve --http :9000             # Listen for WebSocket/HTTP on port 9000
  rps serve --ssh ""                 # Disable the SSH transport
  rps serve --db memory              # Keep nothing between restarts

Players can connect with:
  ssh localhost -p 2222`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagHTTPAddr, "http", "", "HTTP/WebSocket address (host:port)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", `SSH address (host:port, "" disables)`)
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to SSH host key file (auto-generated if missing)")
}

func runServe(cmd *cobra.Command, _ []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cmd.Flags().Changed("http") {
		cfg.Server.HTTPAddr = flagHTTPAddr
	}
	if cmd.Flags().Changed("ssh") {
		cfg.Server.SSHAddr = flagSSHAddr
	}
	if cmd.Flags().Changed("host-key") {
		cfg.Server.HostKey = flagHostKey
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "rps",
	})
	logger.SetLevel(cfg.LogLevel())

	store, err := transport.OpenStore(cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}

	server, err := transport.NewServer(cfg, store, logger)
	if err != nil {
		store.Close()
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting RPS server on %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.SSHAddr != "" {
		fmt.Printf("SSH transport on %s\n", cfg.Server.SSHAddr)
	}
	fmt.Println("Press Ctrl+C to stop")

	if err := server.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
