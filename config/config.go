// Package config resolves the sync configuration from defaults, an optional
// YAML file, environment variables and (in the CLI layer) flag overrides —
// each layer winning over the previous one.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/candlesync/market"
	"github.com/rustyeddy/candlesync/store"
)

// Config is the resolved process configuration.
type Config struct {
	// DB is the SQLite database path.
	DB string `env:"CANDLESYNC_DB" yaml:"db"`

	// Env selects the OANDA environment: "practice" or "live".
	Env string `env:"OANDA_ENV" yaml:"env"`

	// Credential pair. The token deliberately has no file representation so
	// it never ends up committed inside a config file.
	AccountID string `env:"OANDA_ACCOUNT_ID" yaml:"account_id"`
	Token     string `env:"OANDA_ACCESS_TOKEN" yaml:"-"`

	// Granularities to sync, as D/W/M tokens or spelled-out names.
	Granularities []string `env:"CANDLESYNC_GRANULARITIES" envSeparator:"," yaml:"granularities"`

	// Instruments is the whitelist matched by prefix against the account's
	// instrument universe. Empty means the built-in default list.
	Instruments []string `env:"CANDLESYNC_INSTRUMENTS" envSeparator:"," yaml:"instruments"`

	// Workers bounds job parallelism.
	Workers int `env:"CANDLESYNC_WORKERS" yaml:"workers"`

	// Retention caps stored candles per instrument/granularity pair; 0
	// disables pruning.
	Retention int `env:"CANDLESYNC_RETENTION" yaml:"retention"`

	LogLevel string `env:"CANDLESYNC_LOG_LEVEL" yaml:"log_level"`
	NoColor  bool   `env:"NO_COLOR" yaml:"no_color"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB:            "oanda.db",
		Env:           "live",
		Granularities: []string{"D", "W", "M"},
		Instruments:   market.DefaultWhitelist,
		Workers:       4,
		Retention:     store.DefaultRetention,
		LogLevel:      "info",
	}
}

// Load layers the optional YAML file at path and then the environment over
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// Validate checks what a sync run requires.
func (c Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("missing access token: set OANDA_ACCESS_TOKEN or --token")
	}
	if c.AccountID == "" {
		return fmt.Errorf("missing account id: set OANDA_ACCOUNT_ID or --account-id")
	}
	if c.DB == "" {
		return fmt.Errorf("db path is required")
	}
	if len(c.Granularities) == 0 {
		return fmt.Errorf("at least one granularity is required")
	}
	if _, err := c.ParseGranularities(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must be >= 0")
	}
	return nil
}

// ParseGranularities converts the configured granularity tokens.
func (c Config) ParseGranularities() ([]market.Granularity, error) {
	out := make([]market.Granularity, 0, len(c.Granularities))
	seen := map[market.Granularity]bool{}
	for _, s := range c.Granularities {
		g, err := market.ParseGranularity(s)
		if err != nil {
			return nil, err
		}
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out, nil
}
