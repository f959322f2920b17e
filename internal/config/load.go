package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the harness reads.
const EnvPrefix = "ISOCHECK"

// defaults are applied before any file or environment value.
var defaults = map[string]any{
	"database.max_open_conns": 10,
	"harness.store":           StorePostgres,
	"harness.signal_timeout":  "10s",
	"harness.run_timeout":     "30s",
	"harness.retry_attempts":  1,
	"log.level":               "info",
	"log.format":              "",
	"server.port":             8080,
}

// Load reads configuration from an optional isocheck.yaml in the working
// directory and from ISOCHECK_* environment variables.
// Environment variables take precedence over values from config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory; a missing default file is not an error, a missing explicit
// file is.
func LoadFile(path string) (*Config, error) {
	return LoadFileWith(path, nil)
}

// LoadFileWith is LoadFile with overrides applied on top of every other
// source, keyed like "harness.store". Command-line flags use it.
func LoadFileWith(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("isocheck")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about; bind them
	// explicitly so Unmarshal sees values that exist only in the environment.
	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}
	if err := v.BindEnv("database.url"); err != nil {
		return nil, fmt.Errorf("error binding environment variable for database.url: %w", err)
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-section rules.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if c.Harness.Store == StorePostgres && c.Database.URL == "" {
		return fmt.Errorf("configuration validation failed: database.url is required when harness.store is %q", StorePostgres)
	}

	return nil
}
