// Package config loads runtime configuration from a config file,
// environment variables and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Checkpoint backend names accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds engine runtime settings.
type Config struct {
	// Backend selects the checkpoint store: memory, sqlite or postgres.
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path"`
	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// Checkpoints enables snapshotting at step boundaries.
	Checkpoints bool `mapstructure:"checkpoints"`
	// DefaultTimeout bounds actions that declare no timeout.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// DefaultConcurrency bounds foreach steps that declare no limit.
	DefaultConcurrency int `mapstructure:"default_concurrency"`
	// MaxSubWorkflowDepth guards against runaway composition.
	MaxSubWorkflowDepth int `mapstructure:"max_subworkflow_depth"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration. path optionally names a config file; when empty
// the loader looks for recipeflow.yaml in the working directory. Environment
// variables use the RECIPEFLOW_ prefix (e.g. RECIPEFLOW_BACKEND=sqlite).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("backend", BackendMemory)
	v.SetDefault("sqlite_path", "recipeflow.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("checkpoints", true)
	v.SetDefault("default_timeout", 30*time.Second)
	v.SetDefault("default_concurrency", 1)
	v.SetDefault("max_subworkflow_depth", 16)
	v.SetDefault("debug", false)

	v.SetEnvPrefix("RECIPEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("recipeflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Backend)
	}
	if c.Backend == BackendPostgres && c.PostgresDSN == "" {
		return fmt.Errorf("postgres backend requires a DSN")
	}
	return nil
}
