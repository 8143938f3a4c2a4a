// Package config loads server settings from the environment and bridge
// option bags from files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Bridge    BridgeConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// BridgeConfig holds the defaults applied to contexts created without an
// explicit option bag.
type BridgeConfig struct {
	GatherStats    bool   `envconfig:"BRIDGE_GATHER_STATS" default:"true"`
	SaveMessages   bool   `envconfig:"BRIDGE_SAVE_MESSAGES" default:"true"`
	MaxMemoryBytes int64  `envconfig:"BRIDGE_MAX_MEMORY_BYTES" default:"67108864"`
	MaxTimeoutUS   int64  `envconfig:"BRIDGE_MAX_TIMEOUT_US" default:"5000000"`
	MaxContexts    int    `envconfig:"BRIDGE_MAX_CONTEXTS" default:"64"`
	OptionsFile    string `envconfig:"BRIDGE_OPTIONS_FILE"`
}

// Options renders the bridge defaults as an option bag. Values from
// OptionsFile, when set, override the environment.
func (b BridgeConfig) Options() (map[string]any, error) {
	opts := map[string]any{
		bridge.OptGatherStats:    b.GatherStats,
		bridge.OptSaveMessages:   b.SaveMessages,
		bridge.OptMaxMemoryBytes: b.MaxMemoryBytes,
		bridge.OptMaxTimeoutUS:   b.MaxTimeoutUS,
	}
	if b.OptionsFile == "" {
		return opts, nil
	}
	fromFile, err := LoadOptionsFile(b.OptionsFile)
	if err != nil {
		return nil, err
	}
	for k, v := range fromFile {
		opts[k] = v
	}
	return opts, nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Bridge: BridgeConfig{
			GatherStats:    true,
			SaveMessages:   true,
			MaxMemoryBytes: bridge.DefaultMaxMemoryBytes,
			MaxTimeoutUS:   bridge.DefaultMaxTimeout.Microseconds(),
			MaxContexts:    64,
		},
	}
}

// LoadOptionsFile reads an option bag from a .yaml, .yml, .toml or .json
// file. Keys are passed through untouched so unknown names still reach
// bridge.ParseConfig and fail there.
func LoadOptionsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}

	opts := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &opts)
	case ".toml":
		err = toml.Unmarshal(data, &opts)
	case ".json":
		err = sonic.Unmarshal(data, &opts)
	default:
		return nil, fmt.Errorf("options file %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse options file %s: %w", path, err)
	}
	return opts, nil
}
