package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
)

var envKeys = []string{
	"PORT", "HOST", "LOG_LEVEL", "LOG_DEV",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_ENABLED",
	"BRIDGE_GATHER_STATS", "BRIDGE_SAVE_MESSAGES", "BRIDGE_MAX_MEMORY_BYTES",
	"BRIDGE_MAX_TIMEOUT_US", "BRIDGE_MAX_CONTEXTS", "BRIDGE_OPTIONS_FILE",
}

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.True(t, cfg.Bridge.GatherStats)
	assert.Equal(t, int64(bridge.DefaultMaxMemoryBytes), cfg.Bridge.MaxMemoryBytes)
	assert.Equal(t, int64(5_000_000), cfg.Bridge.MaxTimeoutUS)
	assert.Equal(t, 64, cfg.Bridge.MaxContexts)
}

func TestLoadMatchesDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	envVars := map[string]string{
		"PORT":                    "9000",
		"HOST":                    "127.0.0.1",
		"LOG_LEVEL":               "debug",
		"LOG_DEV":                 "true",
		"RATE_LIMIT_RPS":          "500",
		"RATE_LIMIT_BURST":        "1000",
		"RATE_LIMIT_ENABLED":      "false",
		"BRIDGE_GATHER_STATS":     "false",
		"BRIDGE_SAVE_MESSAGES":    "false",
		"BRIDGE_MAX_MEMORY_BYTES": "1048576",
		"BRIDGE_MAX_TIMEOUT_US":   "750000",
		"BRIDGE_MAX_CONTEXTS":     "4",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.False(t, cfg.Bridge.GatherStats)
	assert.False(t, cfg.Bridge.SaveMessages)
	assert.Equal(t, int64(1048576), cfg.Bridge.MaxMemoryBytes)
	assert.Equal(t, int64(750000), cfg.Bridge.MaxTimeoutUS)
	assert.Equal(t, 4, cfg.Bridge.MaxContexts)
}

func TestLoadInvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRIDGE_MAX_CONTEXTS", "many")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, Default(), cfg)
}

func TestBridgeOptionsParse(t *testing.T) {
	opts, err := Default().Bridge.Options()
	require.NoError(t, err)

	parsed, err := bridge.ParseConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, bridge.Config{
		GatherStats:    true,
		SaveMessages:   true,
		MaxMemoryBytes: bridge.DefaultMaxMemoryBytes,
		MaxTimeout:     bridge.DefaultMaxTimeout,
	}, parsed)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOptionsFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "opts.yaml", "gather_stats: true\nsave_messages: false\nmax_memory_bytes: 262144\nmax_timeout_us: 900000\n"},
		{"yml", "opts.yml", "gather_stats: true\nmax_memory_bytes: 262144\nmax_timeout_us: 900000\n"},
		{"toml", "opts.toml", "gather_stats = true\nsave_messages = false\nmax_memory_bytes = 262144\nmax_timeout_us = 900000\n"},
		{"json", "opts.json", `{"gather_stats": true, "max_memory_bytes": 262144, "max_timeout_us": 900000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := LoadOptionsFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			cfg, err := bridge.ParseConfig(raw)
			require.NoError(t, err)
			assert.True(t, cfg.GatherStats)
			assert.False(t, cfg.SaveMessages)
			assert.Equal(t, int64(262144), cfg.MaxMemoryBytes)
			assert.Equal(t, 900*time.Millisecond, cfg.MaxTimeout)
		})
	}
}

func TestLoadOptionsFileErrors(t *testing.T) {
	_, err := LoadOptionsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadOptionsFile(writeFile(t, "opts.ini", "gather_stats=1"))
	assert.Error(t, err)

	_, err = LoadOptionsFile(writeFile(t, "opts.json", "{not json"))
	assert.Error(t, err)

	raw, err := LoadOptionsFile(writeFile(t, "opts.yaml", "unknown_knob: 3\n"))
	require.NoError(t, err)
	_, err = bridge.ParseConfig(raw)
	assert.ErrorIs(t, err, bridge.ErrConfig)
}

func TestBridgeOptionsFileOverrides(t *testing.T) {
	b := Default().Bridge
	b.OptionsFile = writeFile(t, "override.toml", "gather_stats = false\nmax_timeout_us = 600000\n")

	opts, err := b.Options()
	require.NoError(t, err)
	assert.Equal(t, false, opts[bridge.OptGatherStats])
	assert.Equal(t, int64(600000), opts[bridge.OptMaxTimeoutUS])
	assert.Equal(t, true, opts[bridge.OptSaveMessages])
}
