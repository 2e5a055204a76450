package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadTikTokAdsDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"start_date": "2022-01-01T00:00:00Z",
		"access_token": "token",
		"accounts": ["123", "456"]
	}`)

	cfg, err := LoadTikTokAds(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"123", "456"}, cfg.Accounts)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.False(t, cfg.Sandbox)
	assert.Equal(t, "none", cfg.State.Backend)
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.Equal(t, 3, cfg.Reliability.RetryAttempts)
	assert.Equal(t, "tiktok-ads", cfg.Name)
}

func TestLoadTikTokAdsFlexibleValues(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		accounts    []string
		pageSize    int
		sandbox     bool
		timeout     time.Duration
	}{
		{
			name:     "comma separated accounts and string numbers",
			body:     `{"accounts": "1,2, 3", "page_size": "100", "sandbox": "true", "request_timeout": "100"}`,
			accounts: []string{"1", "2", "3"},
			pageSize: 100,
			sandbox:  true,
			timeout:  100 * time.Second,
		},
		{
			name:     "float timeout",
			body:     `{"accounts": ["7"], "page_size": 50, "sandbox": false, "request_timeout": 100.10}`,
			accounts: []string{"7"},
			pageSize: 50,
			timeout:  time.Duration(100.10 * float64(time.Second)),
		},
		{
			name:     "string float timeout and string false",
			body:     `{"accounts": "7", "sandbox": "False", "request_timeout": "100.10"}`,
			accounts: []string{"7"},
			pageSize: DefaultPageSize,
			timeout:  time.Duration(100.10 * float64(time.Second)),
		},
		{
			name:     "empty values fall back to defaults",
			body:     `{"accounts": "7", "page_size": "", "request_timeout": ""}`,
			accounts: []string{"7"},
			pageSize: DefaultPageSize,
			timeout:  DefaultRequestTimeout,
		},
		{
			name:     "zero timeout falls back to default",
			body:     `{"accounts": "7", "request_timeout": 0.0}`,
			accounts: []string{"7"},
			pageSize: DefaultPageSize,
			timeout:  DefaultRequestTimeout,
		},
		{
			name:     "zero string timeout falls back to default",
			body:     `{"accounts": "7", "request_timeout": "0"}`,
			accounts: []string{"7"},
			pageSize: DefaultPageSize,
			timeout:  DefaultRequestTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body[:len(tt.body)-1] + `, "start_date": "2022-01-01", "access_token": "token"}`
			cfg, err := LoadTikTokAds(writeConfig(t, "config.json", body))
			require.NoError(t, err)

			assert.Equal(t, tt.accounts, cfg.Accounts)
			assert.Equal(t, tt.pageSize, cfg.PageSize)
			assert.Equal(t, tt.sandbox, cfg.Sandbox)
			assert.Equal(t, tt.timeout, cfg.RequestTimeout)
		})
	}
}

func TestLoadTikTokAdsAccountErrors(t *testing.T) {
	tests := []struct {
		name     string
		accounts string
		message  string
	}{
		{"empty", `""`, "Please provide atleast 1 Account ID."},
		{"missing", `[]`, "Please provide atleast 1 Account ID."},
		{"non numeric", `"1a"`, "Provided list of account IDs contains invalid IDs. Kindly check your Account IDs."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.json",
				`{"start_date": "2022-01-01", "access_token": "token", "accounts": `+tt.accounts+`}`)

			_, err := LoadTikTokAds(path)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadTikTokAdsValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing access token", `{"start_date": "2022-01-01", "accounts": "1"}`},
		{"missing start date", `{"access_token": "t", "accounts": "1"}`},
		{"bad start date", `{"start_date": "first of may", "access_token": "t", "accounts": "1"}`},
		{"bad end date", `{"start_date": "2022-01-01", "end_date": "soon", "access_token": "t", "accounts": "1"}`},
		{"unknown backend", `{"start_date": "2022-01-01", "access_token": "t", "accounts": "1", "state": {"backend": "redis"}}`},
		{"s3 without bucket", `{"start_date": "2022-01-01", "access_token": "t", "accounts": "1", "state": {"backend": "s3"}}`},
		{"unknown compression", `{"start_date": "2022-01-01", "access_token": "t", "accounts": "1", "output": {"compression": "rar"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTikTokAds(writeConfig(t, "config.json", tt.body))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), "got %v", err)
		})
	}
}

func TestLoadYAMLWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_TIKTOK_TOKEN", "from-env")
	path := writeConfig(t, "config.yaml", `
start_date: "2022-01-01T00:00:00Z"
end_date: "2022-02-01T00:00:00Z"
access_token: ${TEST_TIKTOK_TOKEN}
accounts: "42"
reliability:
  retry_attempts: 5
  retry_delay: 10ms
state:
  backend: file
  path: /tmp/state.json
`)

	cfg, err := LoadTikTokAds(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AccessToken)
	assert.Equal(t, 5, cfg.Reliability.RetryAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Reliability.RetryDelay)
	assert.Equal(t, "/tmp/state.json", cfg.State.Path)

	end, err := cfg.EndTime(time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("TIKTOK_ADS_ACCESS_TOKEN", "env-token")
	t.Setenv("TIKTOK_ADS_ACCOUNTS", "9, 10")
	path := writeConfig(t, "config.json", `{"start_date": "2022-01-01", "access_token": "file-token", "accounts": "1"}`)

	cfg, err := LoadTikTokAds(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.AccessToken)
	assert.Equal(t, []string{"9", "10"}, cfg.Accounts)
}

func TestEndTimeDefaultsToNow(t *testing.T) {
	cfg := NewTikTokAdsSourceConfig()
	now := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)

	end, err := cfg.EndTime(now)
	require.NoError(t, err)
	assert.Equal(t, now, end)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadTikTokAds(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestSaveWritesYAML(t *testing.T) {
	cfg := NewTikTokAdsSourceConfig()
	cfg.AccessToken = "token"
	cfg.Accounts = []string{"1"}
	cfg.StartDate = "2022-01-01"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "access_token: token")
	assert.Contains(t, string(data), "page_size: 1000")
}
