// Package config provides the configuration system for the TikTok Ads connector.
// It defines a BaseConfig with the ambient sections every connector shares,
// and connector-specific structures that embed it.
//
// The configuration is organized into logical sections:
//   - Timeouts: HTTP request timeouts
//   - Reliability: Retry logic and rate limiting
//   - Observability: Metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.NewBaseConfig("tiktok-ads", "source")
//	cfg.Reliability.RateLimitPerSec = 5
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// BaseConfig is the configuration shared by all connectors. Connectors
// embed it with the yaml inline tag and mapstructure squash.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `mapstructure:"name" yaml:"name" json:"name" default:"tiktok-ads"`
	// Type specifies the connector type
	Type string `mapstructure:"type" yaml:"type" json:"type" default:"source"`
	// Version indicates the configuration version
	Version string `mapstructure:"version" yaml:"version" json:"version" default:"1.0.0"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`

	// Reliability settings for error handling and resilience
	Reliability ReliabilityConfig `mapstructure:"reliability" yaml:"reliability" json:"reliability"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability" json:"observability"`
}

// TimeoutConfig contains timeout-related settings.
type TimeoutConfig struct {
	// Connection timeout for establishing connections
	Connection time.Duration `mapstructure:"connection" yaml:"connection" json:"connection" default:"10s"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `mapstructure:"idle" yaml:"idle" json:"idle" default:"90s"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `mapstructure:"keep_alive" yaml:"keep_alive" json:"keep_alive" default:"30s"`
}

// ReliabilityConfig contains retry and rate limiting settings.
type ReliabilityConfig struct {
	// RetryAttempts sets the total number of attempts for a transient failure
	RetryAttempts int `mapstructure:"retry_attempts" yaml:"retry_attempts" json:"retry_attempts" default:"3" validate:"gte=1"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" json:"retry_delay" default:"5s"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `mapstructure:"retry_multiplier" yaml:"retry_multiplier" json:"retry_multiplier" default:"2" validate:"gte=1"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay" yaml:"max_retry_delay" json:"max_retry_delay" default:"5m"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" default:"10" validate:"gte=0"`
	// RateLimitBurst is the token bucket burst size
	RateLimitBurst int `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst" json:"rate_limit_burst" default:"1" validate:"gte=1"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level" default:"info" validate:"oneof=debug info warn error"`
	// LogFormat selects the log encoding (json, console)
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format" default:"json" validate:"oneof=json console"`
	// EnableTracing activates OpenTelemetry tracing to stderr
	EnableTracing bool `mapstructure:"enable_tracing" yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate" json:"tracing_sample_rate" default:"1" validate:"gte=0,lte=1"`
	// MetricsAddr exposes Prometheus metrics on this address when set
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr"`
}

// NewBaseConfig creates a new BaseConfig with sensible defaults.
//
// Example:
//
//	cfg := config.NewBaseConfig("tiktok-ads", "source")
//	cfg.Reliability.RetryAttempts = 5  // Override default
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Timeouts: TimeoutConfig{
			Connection: 10 * time.Second,
			Idle:       90 * time.Second,
			KeepAlive:  30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      5 * time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   5 * time.Minute,
			RateLimitPerSec: 10,
			RateLimitBurst:  1,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingSampleRate: 1.0,
		},
	}
}

// Validate validates the base configuration for correctness.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Reliability.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("rate_limit_per_sec cannot be negative")
	}
	return nil
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}
