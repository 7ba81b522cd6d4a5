// Package config loads settings from a .env file and CRICKRECON_* environment variables.
// Environment variables always take precedence over .env values; command-line flags
// override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended (with an underscore) to every key when reading the environment.
const EnvPrefix = "CRICKRECON"

// DefaultBatchSize is the number of events committed per loader transaction.
const DefaultBatchSize = 1000

// Config holds all application configuration.
type Config struct {
	DBPath    string
	FeedPath  string // ball-by-ball CSV export
	BatchSize int
	Debug     bool
	LogJSON   bool
}

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	return load(newViper())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("DB_PATH", DefaultDBPath())
	v.SetDefault("FEED_PATH", "deliveries.csv")
	v.SetDefault("BATCH_SIZE", DefaultBatchSize)
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_JSON", false)

	cfg := &Config{
		DBPath:    v.GetString("DB_PATH"),
		FeedPath:  v.GetString("FEED_PATH"),
		BatchSize: v.GetInt("BATCH_SIZE"),
		Debug:     v.GetBool("DEBUG"),
		LogJSON:   v.GetBool("LOG_JSON"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: %s_DB_PATH must not be empty", EnvPrefix)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: %s_BATCH_SIZE must be positive, got %d", EnvPrefix, c.BatchSize)
	}
	return nil
}

// DefaultDBPath is ~/.crickrecon/cricket.db, or ./cricket.db without a home directory.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cricket.db"
	}
	return filepath.Join(home, ".crickrecon", "cricket.db")
}

func newViper() *viper.Viper {
	// Silently load .env; it is fine for it not to exist.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}
