package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/server.yaml
var defaultServerYAML []byte

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Server: ListenConfig{
			HTTPAddr: ":8080",
			SSHAddr:  ":2222",
			HostKey:  "~/.rps/ssh_host_ed25519",
		},
		Store: StoreConfig{
			Driver:        DriverSQLite,
			Path:          "~/.rps/rps.db",
			Timeout:       5 * time.Second,
			SaveAttempts:  3,
			RetryInterval: 30 * time.Second,
		},
		Coordinator: CoordinatorConfig{
			EventBuffer:      256,
			PresenceInterval: 15 * time.Second,
		},
		Game: GameConfig{
			WinThreshold: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultYAML returns the embedded default YAML.
func DefaultYAML() []byte {
	return defaultServerYAML
}
