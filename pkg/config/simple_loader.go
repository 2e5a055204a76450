// Package config provides simple configuration loading
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

// EnvPrefix is the prefix of environment variables overriding file values
const EnvPrefix = "TIKTOK_ADS"

// envKeys are bound so they can be supplied through the environment alone
var envKeys = []string{
	"access_token", "accounts", "start_date", "end_date", "user_agent",
	"sandbox", "page_size", "request_timeout",
}

// Load loads a JSON or YAML configuration file into config, substituting
// ${VAR} references and applying default tags.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is provided by the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").
			WithDetail("path", filePath)
	}

	v := viper.New()
	v.SetConfigType(configType(filePath))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", filePath)
	}

	hooks := mapstructure.ComposeDecodeHookFunc(accountsHook, durationHook)
	if err := v.Unmarshal(config, viper.DecodeHook(hooks)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}

	return applyDefaults(config)
}

// LoadTikTokAds loads, normalizes and validates a TikTok Ads source configuration
func LoadTikTokAds(filePath string) (*TikTokAdsSourceConfig, error) {
	cfg := &TikTokAdsSourceConfig{}
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the account list and checks every field constraint
func (c *TikTokAdsSourceConfig) Validate() error {
	accounts, err := NormalizeAccounts(c.Accounts)
	if err != nil {
		return err
	}
	c.Accounts = accounts

	if err := newValidator().Struct(c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "invalid configuration")
	}
	return c.BaseConfig.Validate()
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").WithDetail("path", filePath)
	}

	return nil
}

func applyDefaults(config interface{}) error {
	if err := defaults.Set(config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to apply defaults")
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := timeutil.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

var (
	stringSliceType = reflect.TypeOf([]string{})
	durationType    = reflect.TypeOf(time.Duration(0))
)

// accountsHook accepts a comma-separated string wherever a string list is expected
func accountsHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != stringSliceType || from.Kind() != reflect.String {
		return data, nil
	}
	return SplitAccounts(data.(string)), nil
}

// durationHook reads bare numbers (or numeric strings) as seconds
// and other strings as Go durations. Empty strings decode to zero.
func durationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Duration(0), nil
		}
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return secondsToDuration(secs), nil
		}
		return time.ParseDuration(s)
	case float64:
		return secondsToDuration(v), nil
	case float32:
		return secondsToDuration(float64(v)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	}
	return data, nil
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
