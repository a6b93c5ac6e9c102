package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the YAML file.
const (
	EnvHTTPAddr = "RPS_HTTP_ADDR"
	EnvSSHAddr  = "RPS_SSH_ADDR"
	EnvDB       = "RPS_DB"
	EnvLogLevel = "LOG_LEVEL"
)

// Load loads the server configuration.
// Search order: customPath -> ~/.rps/server.yaml -> ./configs/server.yaml -> embedded default.
// A .env file in the working directory is loaded first; existing environment
// variables win over it.
func Load(customPath string) (ServerConfig, error) {
	_ = godotenv.Load() // .env is optional

	cfg, err := loadFile(customPath)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(customPath string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	// Try user config directory
	if userCfgPath := userConfigPath("server.yaml"); userCfgPath != "" {
		if parsed, ok := tryFile(userCfgPath); ok {
			return parsed, nil
		}
	}

	// Try local configs directory
	if parsed, ok := tryFile(filepath.Join("configs", "server.yaml")); ok {
		return parsed, nil
	}

	// Use embedded default YAML
	if err := yaml.Unmarshal(defaultServerYAML, &cfg); err != nil {
		return DefaultServerConfig(), nil // Fallback to hardcoded if embed fails
	}
	return cfg, nil
}

// tryFile parses path over the defaults. Missing or broken files are skipped.
func tryFile(path string) (ServerConfig, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, false
	}
	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, false
	}
	return cfg, true
}

func applyEnv(cfg *ServerConfig) {
	if v, ok := os.LookupEnv(EnvHTTPAddr); ok && v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v, ok := os.LookupEnv(EnvSSHAddr); ok {
		cfg.Server.SSHAddr = v // Empty is allowed and disables SSH
	}
	if v, ok := os.LookupEnv(EnvDB); ok && v != "" {
		if strings.EqualFold(v, DriverMemory) {
			cfg.Store.Driver = DriverMemory
		} else {
			cfg.Store.Driver = DriverSQLite
			cfg.Store.Path = v
		}
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rps", filename)
}
