// Package config loads tiktok-fyp settings from defaults, a YAML file, .env
// files, environment variables and the system keychain, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// Keychain entry holding the ms_token when it is not in the environment.
const (
	KeyringService = "tiktok-fyp"
	KeyringUser    = "ms_token"
)

// Config holds every option the CLI understands.
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Feed     FeedConfig     `yaml:"feed"`
	Hydrate  HydrateConfig  `yaml:"hydrate"`
	Trending TrendingConfig `yaml:"trending"`
	Network  NetworkConfig  `yaml:"network"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SessionConfig locates the saved browser session and API token.
type SessionConfig struct {
	File    string `yaml:"file"`
	MsToken string `yaml:"ms_token"`
}

// FeedConfig bounds the feed collector.
type FeedConfig struct {
	Target      int           `yaml:"target"`
	Output      string        `yaml:"output"`
	MaxAttempts int           `yaml:"max_attempts"`
	MaxIdle     int           `yaml:"max_idle"`
	MaxDuration time.Duration `yaml:"max_duration"`
	Delay       time.Duration `yaml:"delay"`
	Headless    bool          `yaml:"headless"`
	Locale      string        `yaml:"locale"`
}

// HydrateConfig configures sound hydration.
type HydrateConfig struct {
	Input     string        `yaml:"input"`
	Output    string        `yaml:"output"`
	Sleep     time.Duration `yaml:"sleep"`
	Threshold int           `yaml:"threshold"`
}

// TrendingConfig configures trending collection.
type TrendingConfig struct {
	Target      int           `yaml:"target"`
	Batch       int           `yaml:"batch"`
	MaxAttempts int           `yaml:"max_attempts"`
	MaxIdle     int           `yaml:"max_idle"`
	MaxDuration time.Duration `yaml:"max_duration"`
	Output      string        `yaml:"output"`
	Threshold   int           `yaml:"threshold"`
	Expand      ExpandConfig  `yaml:"expand"`
}

// ExpandConfig widens the trending pool with account, hashtag and sound
// videos. Seeds found in the trending batch are added to the listed ones.
type ExpandConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Accounts []string `yaml:"accounts"`
	Hashtags []string `yaml:"hashtags"`
	Sounds   []string `yaml:"sounds"`

	PerAccount int `yaml:"per_account"`
	PerHashtag int `yaml:"per_hashtag"`
	PerSound   int `yaml:"per_sound"`

	MaxAccounts int `yaml:"max_accounts"`
	MaxHashtags int `yaml:"max_hashtags"`
	MaxSounds   int `yaml:"max_sounds"`

	SeedCreators     int `yaml:"seed_creators"`
	SeedHashtags     int `yaml:"seed_hashtags"`
	SeedSuggestWords int `yaml:"seed_suggest_words"`
	SeedSounds       int `yaml:"seed_sounds"`
}

// NetworkConfig holds outbound connection settings.
type NetworkConfig struct {
	Proxy    string        `yaml:"proxy"`
	APIDelay time.Duration `yaml:"api_delay"`
}

// LoggingConfig selects level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			File: "session.json",
		},
		Feed: FeedConfig{
			Target:      50,
			Output:      "fyp.json",
			MaxAttempts: 400,
			MaxIdle:     25,
			MaxDuration: 10 * time.Minute,
			Delay:       1200 * time.Millisecond,
			Headless:    true,
			Locale:      "en-AU",
		},
		Hydrate: HydrateConfig{
			Output:    "sounds.json",
			Sleep:     500 * time.Millisecond,
			Threshold: 1000,
		},
		Trending: TrendingConfig{
			Target:      300,
			Batch:       25,
			MaxAttempts: 200,
			MaxIdle:     6,
			MaxDuration: 20 * time.Minute,
			Output:      "trending.json",
			Threshold:   1000,
			Expand: ExpandConfig{
				Enabled:          true,
				PerAccount:       2,
				PerHashtag:       2,
				PerSound:         3,
				MaxAccounts:      200,
				MaxHashtags:      240,
				MaxSounds:        240,
				SeedCreators:     100,
				SeedHashtags:     100,
				SeedSuggestWords: 30,
				SeedSounds:       100,
			},
		},
		Network: NetworkConfig{
			APIDelay: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile merges a YAML file into c. An empty path searches the default
// locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		"tiktok.yaml",
		"tiktok.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "tiktok-fyp", "config.yaml"),
			filepath.Join(home, ".config", "tiktok-fyp", "config.yml"),
		)
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv overrides c from environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ms_token"); v != "" {
		c.Session.MsToken = v
	}
	if v := os.Getenv("AU_PROXY"); v != "" {
		c.Network.Proxy = v
	}
	if v := os.Getenv("TIKTOK_SESSION_FILE"); v != "" {
		c.Session.File = v
	}
	if v := os.Getenv("TIKTOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TIKTOK_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TIKTOK_HEADLESS: %w", err)
		}
		c.Feed.Headless = b
	}
	return nil
}

// LoadSecrets fills the ms_token from the system keychain when no other
// source set it. A missing entry or unavailable keychain is not an error.
func (c *Config) LoadSecrets() {
	if c.Session.MsToken != "" {
		return
	}
	if tok, err := keyring.Get(KeyringService, KeyringUser); err == nil {
		c.Session.MsToken = strings.TrimSpace(tok)
	}
}

// Validate checks numeric bounds and enumerations.
func (c *Config) Validate() error {
	var errs []error

	if c.Feed.Target < 0 {
		errs = append(errs, errors.New("feed target cannot be negative"))
	}
	if c.Feed.MaxAttempts < 0 || c.Feed.MaxIdle < 0 {
		errs = append(errs, errors.New("feed attempt bounds cannot be negative"))
	}
	if c.Feed.MaxDuration < 0 || c.Feed.Delay < 0 {
		errs = append(errs, errors.New("feed durations cannot be negative"))
	}
	if c.Feed.MaxAttempts == 0 && c.Feed.MaxIdle == 0 && c.Feed.MaxDuration == 0 {
		errs = append(errs, errors.New("feed needs max_attempts, max_idle or max_duration"))
	}
	if c.Hydrate.Threshold <= 0 || c.Trending.Threshold <= 0 {
		errs = append(errs, errors.New("emerging threshold must be positive"))
	}
	if c.Hydrate.Sleep < 0 || c.Network.APIDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	t := c.Trending
	if t.Target < 0 || t.Batch < 0 || t.MaxAttempts < 0 || t.MaxIdle < 0 || t.MaxDuration < 0 {
		errs = append(errs, errors.New("trending bounds cannot be negative"))
	}
	if t.MaxAttempts == 0 && t.MaxIdle == 0 && t.MaxDuration == 0 {
		errs = append(errs, errors.New("trending needs max_attempts, max_idle or max_duration"))
	}
	e := t.Expand
	for _, n := range []int{e.PerAccount, e.PerHashtag, e.PerSound, e.MaxAccounts, e.MaxHashtags,
		e.MaxSounds, e.SeedCreators, e.SeedHashtags, e.SeedSuggestWords, e.SeedSounds} {
		if n < 0 {
			errs = append(errs, errors.New("trending expansion limits cannot be negative"))
			break
		}
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Load builds the configuration: defaults, then the config file, then .env
// files and the environment, then the keychain. The result is validated.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".config", "tiktok-fyp", ".env"))
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	cfg.LoadSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
