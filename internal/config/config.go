package config

import "time"

// Store backends the harness can run against.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all harness configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Harness  HarnessConfig  `mapstructure:"harness" validate:"required"`
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
// URL is only required when the postgres store is selected.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=2"`
}

// HarnessConfig controls how scenarios are executed.
type HarnessConfig struct {
	Store         string        `mapstructure:"store" validate:"required,oneof=postgres memory"`
	SignalTimeout time.Duration `mapstructure:"signal_timeout" validate:"gt=0"`
	RunTimeout    time.Duration `mapstructure:"run_timeout" validate:"gt=0,gtfield=SignalTimeout"`
	// RetryAttempts is how many times a run is repeated when the store is
	// unreachable. Verdicts are never retried.
	RetryAttempts int `mapstructure:"retry_attempts" validate:"gte=1,lte=10"`
}

// LogConfig contains the logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text ci"`
}

// ServerConfig contains the settings of the optional HTTP report server.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,gt=0,lt=65536"`
}
