// Package config provides connector-specific configurations that embed BaseConfig
package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

const (
	// DefaultPageSize is the page size used when page_size is unset or empty
	DefaultPageSize = 1000
	// DefaultRequestTimeout is used when request_timeout is unset, empty or zero
	DefaultRequestTimeout = 300 * time.Second

	errNoAccounts      = "Please provide atleast 1 Account ID."
	errInvalidAccounts = "Provided list of account IDs contains invalid IDs. Kindly check your Account IDs."
)

// TikTokAdsSourceConfig contains configuration for the TikTok Ads source connector
type TikTokAdsSourceConfig struct {
	BaseConfig `mapstructure:",squash" yaml:",inline" json:",inline"`

	// API credentials and account selection
	AccessToken string   `mapstructure:"access_token" yaml:"access_token" json:"access_token" validate:"required"`
	UserAgent   string   `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
	Accounts    []string `mapstructure:"accounts" yaml:"accounts" json:"accounts"`
	Sandbox     bool     `mapstructure:"sandbox" yaml:"sandbox" json:"sandbox"`

	// Replication range
	StartDate string `mapstructure:"start_date" yaml:"start_date" json:"start_date" validate:"required,timestamp"`
	EndDate   string `mapstructure:"end_date" yaml:"end_date" json:"end_date" validate:"omitempty,timestamp"`

	// API behavior
	PageSize       int           `mapstructure:"page_size" yaml:"page_size" json:"page_size" default:"1000" validate:"gte=1"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" json:"request_timeout" default:"300s"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url" json:"base_url" validate:"omitempty,url"`

	// Output formatting
	ValidateRecords bool `mapstructure:"validate_records" yaml:"validate_records" json:"validate_records"`

	State  StateConfig  `mapstructure:"state" yaml:"state" json:"state"`
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// StateConfig selects where checkpoints are mirrored in addition to the STATE messages
type StateConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend" default:"none" validate:"oneof=none file s3 gcs postgres"`

	// file backend
	Path string `mapstructure:"path" yaml:"path" json:"path" validate:"required_if=Backend file"`

	// s3 and gcs backends
	Bucket          string `mapstructure:"bucket" yaml:"bucket" json:"bucket" validate:"required_if=Backend s3,required_if=Backend gcs"`
	Key             string `mapstructure:"key" yaml:"key" json:"key" default:"tiktok-ads/state.json"`
	Region          string `mapstructure:"region" yaml:"region" json:"region" default:"us-east-1"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`

	// postgres backend
	DSN     string `mapstructure:"dsn" yaml:"dsn" json:"dsn" validate:"required_if=Backend postgres"`
	Table   string `mapstructure:"table" yaml:"table" json:"table" default:"connector_state"`
	StateID string `mapstructure:"state_id" yaml:"state_id" json:"state_id" default:"tiktok_ads"`
}

// OutputConfig controls where the message stream is written
type OutputConfig struct {
	// Path of the output file; empty writes to stdout
	Path        string `mapstructure:"path" yaml:"path" json:"path"`
	Compression string `mapstructure:"compression" yaml:"compression" json:"compression" default:"none" validate:"oneof=none gzip zstd snappy s2 lz4"`
}

// NewTikTokAdsSourceConfig returns a configuration with all defaults applied
func NewTikTokAdsSourceConfig() *TikTokAdsSourceConfig {
	cfg := &TikTokAdsSourceConfig{}
	_ = applyDefaults(cfg)
	return cfg
}

// StartTime returns the parsed start_date
func (c *TikTokAdsSourceConfig) StartTime() (time.Time, error) {
	return timeutil.Parse(c.StartDate)
}

// EndTime returns the parsed end_date, or now when it is unset
func (c *TikTokAdsSourceConfig) EndTime(now time.Time) (time.Time, error) {
	if strings.TrimSpace(c.EndDate) == "" {
		return now.UTC(), nil
	}
	return timeutil.Parse(c.EndDate)
}

// NormalizeAccounts trims account IDs and checks they are non-empty and numeric
func NormalizeAccounts(accounts []string) ([]string, error) {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, errNoAccounts)
	}
	for _, a := range out {
		for _, r := range a {
			if r < '0' || r > '9' {
				return nil, errors.New(errors.ErrorTypeConfig, errInvalidAccounts)
			}
		}
	}
	return out, nil
}

// SplitAccounts splits a comma-separated account list
func SplitAccounts(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
