package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "session.json", cfg.Session.File)
	assert.Equal(t, 50, cfg.Feed.Target)
	assert.True(t, cfg.Feed.Headless)
	assert.Equal(t, 1000, cfg.Hydrate.Threshold)
	assert.Equal(t, 6, cfg.Trending.MaxIdle)
	assert.Equal(t, 200, cfg.Trending.MaxAttempts)
	assert.True(t, cfg.Trending.Expand.Enabled)
	assert.Equal(t, 3, cfg.Trending.Expand.PerSound)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiktok.yaml")
	content := `
session:
  file: /tmp/state.json
feed:
  target: 12
  max_idle: 3
  delay: 800ms
hydrate:
  threshold: 250
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "/tmp/state.json", cfg.Session.File)
	assert.Equal(t, 12, cfg.Feed.Target)
	assert.Equal(t, 3, cfg.Feed.MaxIdle)
	assert.Equal(t, 800*time.Millisecond, cfg.Feed.Delay)
	assert.Equal(t, 250, cfg.Hydrate.Threshold)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched keys keep their defaults
	assert.Equal(t, 400, cfg.Feed.MaxAttempts)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("feed: [unclosed"), 0o644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ms_token", "tok-123")
	t.Setenv("AU_PROXY", "socks5://127.0.0.1:1080")
	t.Setenv("TIKTOK_SESSION_FILE", "/secure/session.json")
	t.Setenv("TIKTOK_LOG_LEVEL", "warn")
	t.Setenv("TIKTOK_HEADLESS", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "tok-123", cfg.Session.MsToken)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Network.Proxy)
	assert.Equal(t, "/secure/session.json", cfg.Session.File)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Feed.Headless)
}

func TestLoadFromEnvBadBool(t *testing.T) {
	t.Setenv("TIKTOK_HEADLESS", "sometimes")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadSecrets(t *testing.T) {
	keyring.MockInit()

	cfg := DefaultConfig()
	cfg.LoadSecrets()
	assert.Empty(t, cfg.Session.MsToken, "missing keychain entry is not an error")

	require.NoError(t, keyring.Set(KeyringService, KeyringUser, " from-keychain \n"))
	cfg.LoadSecrets()
	assert.Equal(t, "from-keychain", cfg.Session.MsToken)

	cfg.Session.MsToken = "from-env"
	cfg.LoadSecrets()
	assert.Equal(t, "from-env", cfg.Session.MsToken, "environment wins over keychain")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative target", func(c *Config) { c.Feed.Target = -1 }},
		{"negative idle", func(c *Config) { c.Feed.MaxIdle = -1 }},
		{"negative delay", func(c *Config) { c.Feed.Delay = -time.Second }},
		{"zero threshold", func(c *Config) { c.Hydrate.Threshold = 0 }},
		{"negative sleep", func(c *Config) { c.Hydrate.Sleep = -time.Second }},
		{"negative batch", func(c *Config) { c.Trending.Batch = -5 }},
		{"negative trending duration", func(c *Config) { c.Trending.MaxDuration = -time.Minute }},
		{"unbounded feed", func(c *Config) {
			c.Feed.MaxAttempts, c.Feed.MaxIdle, c.Feed.MaxDuration = 0, 0, 0
		}},
		{"unbounded trending", func(c *Config) {
			c.Trending.MaxAttempts, c.Trending.MaxIdle, c.Trending.MaxDuration = 0, 0, 0
		}},
		{"negative per sound", func(c *Config) { c.Trending.Expand.PerSound = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateSingleBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trending.MaxAttempts, cfg.Trending.MaxDuration = 0, 0
	assert.NoError(t, cfg.Validate(), "max_idle alone bounds the loop")
}

func TestLoadFromFileExpand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiktok.yaml")
	content := `
trending:
  max_duration: 5m
  expand:
    enabled: false
    accounts: [bigcreator, "@other"]
    hashtags: [dance]
    per_hashtag: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 5*time.Minute, cfg.Trending.MaxDuration)
	assert.False(t, cfg.Trending.Expand.Enabled)
	assert.Equal(t, []string{"bigcreator", "@other"}, cfg.Trending.Expand.Accounts)
	assert.Equal(t, []string{"dance"}, cfg.Trending.Expand.Hashtags)
	assert.Equal(t, 4, cfg.Trending.Expand.PerHashtag)
	assert.Equal(t, 3, cfg.Trending.Expand.PerSound)
}

func TestLoad(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  target: 7\n"), 0o644))
	t.Setenv("TIKTOK_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Feed.Target)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Setenv("TIKTOK_LOG_LEVEL", "loud")
	_, err = Load(path)
	assert.Error(t, err)
}
