// Package config loads application configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/courtedge/nba-divergence/pkg/sim"
)

// Config stores all configuration for the backtest tools. Values are read by
// viper from a config file or environment variables.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Server     ServerConfig     `mapstructure:"server"`
}

// DatabaseConfig holds the Postgres connection settings for historical game
// data.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// CacheConfig controls result memoization.
type CacheConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// SimulationConfig holds worker-pool sizing and default run parameters.
type SimulationConfig struct {
	Workers        int           `mapstructure:"workers"`
	EntryThreshold float64       `mapstructure:"entry_threshold"`
	ExitThreshold  float64       `mapstructure:"exit_threshold"`
	BetSize        float64       `mapstructure:"bet_size"`
	ExcludeFirst   time.Duration `mapstructure:"exclude_first"`
	ExcludeLast    time.Duration `mapstructure:"exclude_last"`
	EnableFees     bool          `mapstructure:"enable_fees"`
}

// ServerConfig holds the HTTP listen settings for the daemon.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultParams converts the configured defaults into simulation parameters.
func (c SimulationConfig) DefaultParams() sim.Params {
	return sim.Params{
		EntryThreshold: c.EntryThreshold,
		ExitThreshold:  c.ExitThreshold,
		BetSize:        c.BetSize,
		ExcludeFirst:   c.ExcludeFirst,
		ExcludeLast:    c.ExcludeLast,
		EnableFees:     c.EnableFees,
	}
}

// Load reads configuration from path (a directory holding config.yaml) or
// environment variables. A missing file is not an error; env vars and
// defaults still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DIVERGENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache.path", "divergence-cache.db")
	v.SetDefault("cache.ttl", 365*24*time.Hour)
	v.SetDefault("simulation.workers", 8)
	v.SetDefault("simulation.entry_threshold", 0.05)
	v.SetDefault("simulation.exit_threshold", 0.02)
	v.SetDefault("simulation.bet_size", 20)
	v.SetDefault("server.addr", ":8080")

	var config Config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config, err
		}
	}

	err := v.Unmarshal(&config)
	return config, err
}
