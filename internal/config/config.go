// Package config provides YAML-based server configuration loading with
// environment overrides for the match server.
package config

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// ServerConfig contains all configuration for the match server.
type ServerConfig struct {
	Server      ListenConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Game        GameConfig        `yaml:"game"`
	Log         LogConfig         `yaml:"log"`
}

// ListenConfig defines the network listeners.
type ListenConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	SSHAddr  string `yaml:"ssh_addr"` // Empty disables the SSH transport
	HostKey  string `yaml:"host_key"`
}

// StoreConfig defines the record store backend.
type StoreConfig struct {
	Driver        string        `yaml:"driver"` // sqlite or memory
	Path          string        `yaml:"path"`
	Timeout       time.Duration `yaml:"timeout"`
	SaveAttempts  int           `yaml:"save_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// CoordinatorConfig defines the event loop parameters.
type CoordinatorConfig struct {
	EventBuffer      int           `yaml:"event_buffer"`
	PresenceInterval time.Duration `yaml:"presence_interval"`
}

// GameConfig defines game rules.
type GameConfig struct {
	WinThreshold int `yaml:"win_threshold"`
}

// LogConfig defines logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Validate reports the first invalid setting.
func (c ServerConfig) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr is required")
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("config: store.timeout must be positive")
	}
	if c.Store.SaveAttempts < 1 {
		return fmt.Errorf("config: store.save_attempts must be at least 1")
	}
	if c.Store.RetryInterval <= 0 {
		return fmt.Errorf("config: store.retry_interval must be positive")
	}
	if c.Coordinator.PresenceInterval <= 0 {
		return fmt.Errorf("config: coordinator.presence_interval must be positive")
	}
	if c.Game.WinThreshold < 1 {
		return fmt.Errorf("config: game.win_threshold must be at least 1")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// LogLevel returns the parsed log level, defaulting to info.
func (c ServerConfig) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
