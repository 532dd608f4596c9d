package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(100000), cfg.Discovery.DefaultMinSubscribers)
	assert.Equal(t, 7*24*time.Hour, cfg.Redis.CacheTTL)
	assert.False(t, cfg.CaptchaEnabled())
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  port: 9090
youtube:
  api_key: ${TEST_SCOUT_YT_KEY}
discovery:
  default_limit: 5
  max_limit: 50
scraper:
  engine: firecrawl
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	t.Setenv("TEST_SCOUT_YT_KEY", "yt-key")
	t.Setenv("CAPTCHA_API_KEY", "captcha-key")
	t.Setenv("DISCOVERY_RUN_TIMEOUT", "90s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "yt-key", cfg.YouTube.APIKey)
	assert.Equal(t, 5, cfg.Discovery.DefaultLimit)
	assert.Equal(t, "firecrawl", cfg.Scraper.Engine)
	assert.Equal(t, 90*time.Second, cfg.Discovery.RunTimeout)
	assert.True(t, cfg.CaptchaEnabled())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scraper:\n  engine: selenium\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_SCOUT_HOST", "example.internal")
	assert.Equal(t, "http://example.internal:$UNSET_SCOUT_VAR", expandEnvVars("http://${TEST_SCOUT_HOST}:$UNSET_SCOUT_VAR"))
}
