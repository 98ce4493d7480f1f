package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Simulation.Workers)
	assert.Equal(t, 0.05, cfg.Simulation.EntryThreshold)
	assert.Equal(t, 0.02, cfg.Simulation.ExitThreshold)
	assert.Equal(t, 20.0, cfg.Simulation.BetSize)
	assert.Equal(t, 365*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
database:
  dsn: postgres://localhost:5432/nba
simulation:
  workers: 4
  entry_threshold: 0.08
  bet_size: 50
  exclude_first: 5m
  enable_fees: true
server:
  addr: ":9090"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/nba", cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Simulation.Workers)
	assert.Equal(t, 0.08, cfg.Simulation.EntryThreshold)
	assert.Equal(t, 50.0, cfg.Simulation.BetSize)
	assert.Equal(t, 5*time.Minute, cfg.Simulation.ExcludeFirst)
	assert.True(t, cfg.Simulation.EnableFees)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	// Unset values still come from defaults.
	assert.Equal(t, 0.02, cfg.Simulation.ExitThreshold)
}

func TestDefaultParamsValidate(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	params := cfg.Simulation.DefaultParams()
	assert.NoError(t, params.Validate())
}
