// Package config provides configuration for the sqlfold command.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/TFMV/sqlfold/pkg/dialect"
)

// Config represents the command configuration.
type Config struct {
	// Rewrite settings
	Dialect  string `yaml:"dialect" json:"dialect" mapstructure:"dialect"`
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`

	// Execution settings
	Database     string        `yaml:"database" json:"database" mapstructure:"database"`
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout" mapstructure:"query_timeout"`
	BatchSize    int           `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Connection pool configuration
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool" json:"connection_pool" mapstructure:"connection_pool"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" json:"address" mapstructure:"address"`
}

// ConnectionPoolConfig represents connection pool configuration.
type ConnectionPoolConfig struct {
	MaxOpenConnections int           `yaml:"max_open_connections" json:"max_open_connections" mapstructure:"max_open_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections" json:"max_idle_connections" mapstructure:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	HealthCheckPeriod  time.Duration `yaml:"health_check_period" json:"health_check_period" mapstructure:"health_check_period"`
	ConnectionTimeout  time.Duration `yaml:"connection_timeout" json:"connection_timeout" mapstructure:"connection_timeout"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Dialect:      "duckdb",
		LogLevel:     "info",
		Database:     ":memory:",
		QueryTimeout: 5 * time.Minute,
		BatchSize:    4096,
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
		ConnectionPool: ConnectionPoolConfig{
			MaxOpenConnections: 16,
			MaxIdleConnections: 4,
			ConnMaxLifetime:    30 * time.Minute,
			ConnMaxIdleTime:    10 * time.Minute,
			HealthCheckPeriod:  time.Minute,
			ConnectionTimeout:  30 * time.Second,
		},
	}
}

// FromViper builds a configuration from bound flags, environment, and an
// optional config file, applying defaults for anything unset.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := dialect.Get(c.Dialect); err != nil {
		return fmt.Errorf("invalid dialect %q: supported are %v", c.Dialect, dialect.Names())
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics enabled without an address")
	}
	return nil
}
