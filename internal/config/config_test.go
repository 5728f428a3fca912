package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgx-io/ertrace"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ertrace.StrategyFreeList, cfg.Pool.Strategy)
	assert.Equal(t, ertrace.DefaultArenaCapacity, cfg.Pool.ArenaCapacity)
	assert.True(t, cfg.Pool.AutoRelease)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Stress.Workers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "ertrace.toml", `
[pool]
strategy = "arena"
arena_capacity = 1024
auto_release = false

[log]
level = "debug"

[stress]
workers = 2
iterations = 50
depth = 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ertrace.StrategyArena, cfg.Pool.Strategy)
	assert.Equal(t, 1024, cfg.Pool.ArenaCapacity)
	assert.False(t, cfg.Pool.AutoRelease)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, StressConfig{Workers: 2, Iterations: 50, Depth: 3}, cfg.Stress)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "ertrace.yaml", `
pool:
  strategy: arena
  arena_capacity: 256
stress:
  workers: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ertrace.StrategyArena, cfg.Pool.Strategy)
	assert.Equal(t, 256, cfg.Pool.ArenaCapacity)
	assert.True(t, cfg.Pool.AutoRelease, "unset keys keep their defaults")
	assert.Equal(t, 4, cfg.Stress.Workers)
	assert.Equal(t, 10000, cfg.Stress.Iterations)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "ertrace.toml", `
[pool]
strategy = "arena"
arena_capacity = 1024
`)
	t.Setenv("ERTRACE_POOL", "freelist")
	t.Setenv("ERTRACE_STRESS_WORKERS", "3")
	t.Setenv("ERTRACE_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ertrace.StrategyFreeList, cfg.Pool.Strategy)
	assert.Equal(t, 1024, cfg.Pool.ArenaCapacity)
	assert.Equal(t, 3, cfg.Stress.Workers)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_EnvironmentPoolOnly(t *testing.T) {
	t.Setenv("ERTRACE_POOL", "arena")
	t.Setenv("ERTRACE_ARENA_CAPACITY", "64")

	var (
		cfg File
		err error
	)
	require.NotPanics(t, func() { cfg, err = Load("") })
	require.NoError(t, err)
	assert.Equal(t, ertrace.StrategyArena, cfg.Pool.Strategy)
	assert.Equal(t, 64, cfg.Pool.ArenaCapacity)
}

func TestLoad_EnvironmentBadPool(t *testing.T) {
	t.Setenv("ERTRACE_POOL", "slab")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ertrace.ErrUnknownStrategy)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unsupported extension", "ertrace.json", `{}`},
		{"bad toml", "ertrace.toml", `[pool`},
		{"non power of two arena", "ertrace.toml", "[pool]\nstrategy = \"arena\"\narena_capacity = 1000\n"},
		{"unknown strategy", "ertrace.yaml", "pool:\n  strategy: slab\n"},
		{"zero workers", "ertrace.toml", "[stress]\nworkers = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEncodeTOML_RoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Pool.Strategy = ertrace.StrategyArena

	out, err := cfg.EncodeTOML()
	require.NoError(t, err)
	assert.Contains(t, out, `strategy = "arena"`)

	back, err := Load(writeFile(t, "out.toml", out))
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
