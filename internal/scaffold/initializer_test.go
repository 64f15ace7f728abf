package scaffold

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/standings/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// load parses a generated file without environment overrides.
func load(t *testing.T, path string) *config.Config {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := config.Parse(data, nil)
	require.NoError(t, err)
	return cfg
}

func TestInitialize(t *testing.T) {
	opts := Options{Instance: "guild", DirectoryURL: "https://directory.example.com"}

	t.Run("writes a valid configuration", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, CheckExisting(dir))
		require.NoError(t, Initialize(dir, false, opts))

		cfg := load(t, filepath.Join(dir, ConfigFile))
		assert.Equal(t, "guild", cfg.Instance)
		assert.Equal(t, config.DefaultRedisURL, cfg.RedisURL)
		assert.Equal(t, "https://directory.example.com", cfg.Directory.BaseURL)
		assert.Equal(t, 7*24*time.Hour, cfg.Reset.Interval.Std())
		assert.Equal(t, 0, *cfg.Reset.TopK)
		assert.Equal(t, 28*24*time.Hour, cfg.Groups.Interval.Std())
	})

	t.Run("existing file is detected", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, Initialize(dir, false, opts))

		err := CheckExisting(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "standings init --force")
	})

	t.Run("force replaces the existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ConfigFile)
		require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

		require.NoError(t, Initialize(dir, true, Options{Instance: "other", DirectoryURL: "http://dir:9000"}))

		cfg := load(t, path)
		assert.Equal(t, "other", cfg.Instance)
	})

	t.Run("rejects options that would not validate", func(t *testing.T) {
		dir := t.TempDir()

		assert.Error(t, Initialize(dir, false, Options{DirectoryURL: "http://dir"}))
		assert.Error(t, Initialize(dir, false, Options{Instance: "x"}))

		err := Initialize(dir, false, Options{Instance: "x", DirectoryURL: "not-a-url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absolute URL")

		_, statErr := os.Stat(filepath.Join(dir, ConfigFile))
		assert.True(t, os.IsNotExist(statErr))
	})
}
