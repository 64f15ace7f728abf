package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const minimalConfig = `version: "1.0"
instance: "guild-1"
directory:
  base_url: "http://directory.local"
`

func noEnv(string) string { return "" }

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "standings.yml")

	validConfig := `version: "1.0"
instance: "guild-1"
redis_url: "redis://redis:6379/2"
channel: "hall-of-fame"
display:
  top_k: 5
  refresh: "30s"
reset:
  interval: "7d"
  top_k: 10
  retry_interval: "1m"
groups:
  interval: "4w"
directory:
  base_url: "http://directory.local"
  ttl: "2m"
  max_retries: 3
scoring:
  char_points: 2
  burst_limit: 0
  cooldown: "10s"
`
	require.NoError(t, os.WriteFile(configPath, []byte(validConfig), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "guild-1", config.Instance)
	assert.Equal(t, "hall-of-fame", config.Channel)
	assert.Equal(t, 5, config.Display.TopK)
	assert.Equal(t, 30*time.Second, config.Display.Refresh.Std())
	assert.Equal(t, 7*24*time.Hour, config.Reset.Interval.Std())
	assert.Equal(t, 10, *config.Reset.TopK)
	assert.Equal(t, time.Minute, config.Reset.RetryInterval.Std())
	assert.Equal(t, 28*24*time.Hour, config.Groups.Interval.Std())
	assert.Equal(t, 3, config.Directory.MaxRetries)
	assert.Equal(t, int64(2), *config.Scoring.CharPoints)
	assert.Equal(t, int64(DefaultEmojiPoints), *config.Scoring.EmojiPoints)
	assert.Equal(t, 0, *config.Scoring.BurstLimit)
	assert.Equal(t, 10*time.Second, config.Scoring.Cooldown.Std())
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/standings.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestParse_InvalidYAML(t *testing.T) {
	invalidYAML := `version: "1.0"
instance:
  - this is invalid
    yaml syntax
`
	config, err := Parse([]byte(invalidYAML), noEnv)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte(minimalConfig+"reset:\n  interval: \"weekly\"\n"), noEnv)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid interval")
}

func TestParse_Defaults(t *testing.T) {
	config, err := Parse([]byte(minimalConfig), noEnv)
	require.NoError(t, err)

	assert.Equal(t, DefaultRedisURL, config.RedisURL)
	assert.Equal(t, DefaultOpsAddr, config.OpsAddr)
	assert.Equal(t, DefaultChannel, config.Channel)
	assert.Equal(t, DefaultDisplayTopK, config.Display.TopK)
	assert.Equal(t, DefaultDisplayRefresh, config.Display.Refresh.Std())
	assert.Equal(t, DefaultResetInterval, config.Reset.Interval.Std())
	assert.Equal(t, 0, *config.Reset.TopK)
	assert.Equal(t, DefaultRetryInterval, config.Reset.RetryInterval.Std())
	assert.Equal(t, DefaultReceiptRetention, config.Reset.ReceiptRetention.Std())
	assert.Equal(t, DefaultGroupInterval, config.Groups.Interval.Std())
	assert.Equal(t, DefaultDirectoryTTL, config.Directory.TTL.Std())
	assert.Equal(t, DefaultDirectoryMaxRetries, config.Directory.MaxRetries)
	assert.Equal(t, DefaultConcurrency, config.Directory.Concurrency)
	assert.Equal(t, DefaultBurstLimit, *config.Scoring.BurstLimit)
	assert.Equal(t, DefaultBurstWindow, config.Scoring.BurstWindow.Std())
	assert.Zero(t, config.Scoring.Cooldown)
}

func TestParse_EnvOverrides(t *testing.T) {
	env := map[string]string{
		"STANDINGS_INSTANCE_NAME": "from-env",
		"REDIS_URL":               "redis://other:6380",
	}
	config, err := Parse([]byte(minimalConfig), func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Instance)
	assert.Equal(t, "redis://other:6380", config.RedisURL)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unsupported version",
			yaml:    "version: \"2.0\"\ninstance: a\ndirectory:\n  base_url: http://x\n",
			wantErr: "unsupported version: 2.0",
		},
		{
			name:    "missing instance",
			yaml:    "version: \"1.0\"\ndirectory:\n  base_url: http://x\n",
			wantErr: "instance is required",
		},
		{
			name:    "missing directory",
			yaml:    "version: \"1.0\"\ninstance: a\n",
			wantErr: "directory section is required",
		},
		{
			name:    "relative directory url",
			yaml:    "version: \"1.0\"\ninstance: a\ndirectory:\n  base_url: /users\n",
			wantErr: "must be an absolute URL",
		},
		{
			name:    "negative reset top_k",
			yaml:    minimalConfig + "reset:\n  top_k: -1\n",
			wantErr: "reset.top_k must be >= 0",
		},
		{
			name:    "negative burst limit",
			yaml:    minimalConfig + "scoring:\n  burst_limit: -2\n",
			wantErr: "scoring.burst_limit",
		},
		{
			name:    "backoff bounds inverted",
			yaml:    "version: \"1.0\"\ninstance: a\ndirectory:\n  base_url: http://x\n  initial_backoff: 1m\n  max_backoff: 1s\n",
			wantErr: "max_backoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), noEnv)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_RetryIntervalCappedByInterval(t *testing.T) {
	config, err := Parse([]byte(minimalConfig+"reset:\n  interval: 10s\n  retry_interval: 1m\n  receipt_retention: 1h\n"), noEnv)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, config.Reset.RetryInterval.Std())
}

func TestDuration_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{D: Duration(7 * 24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "d: 7d\n", string(out))
}
