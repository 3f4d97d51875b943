package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Search   SearchConfig   `toml:"search"`
	Browser  BrowserConfig  `toml:"browser"`
	Login    LoginConfig    `toml:"login"`
	Scraping ScrapingConfig `toml:"scraping"`
	Output   OutputConfig   `toml:"output"`
	Store    StoreConfig    `toml:"store"`
	Cache    CacheConfig    `toml:"cache"`
	Logging  LoggingConfig  `toml:"logging"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type SearchConfig struct {
	LoginURL string `toml:"login_url"`
	Endpoint string `toml:"endpoint"`
}

type BrowserConfig struct {
	Headless  bool   `toml:"headless"`
	ExecPath  string `toml:"exec_path"`
	NoSandbox bool   `toml:"no_sandbox"`
	UserAgent string `toml:"user_agent"`
}

type LoginConfig struct {
	FieldTimeoutSeconds int  `toml:"field_timeout_seconds"`
	FieldDelaySeconds   int  `toml:"field_delay_seconds"`
	SettleSeconds       int  `toml:"settle_seconds"`
	ReuseSession        bool `toml:"reuse_session"`
}

// CooldownConfig pauses the scroller for PauseSeconds every Every scrolls.
type CooldownConfig struct {
	Every        int `toml:"every"`
	PauseSeconds int `toml:"pause_seconds"`
}

type ScrapingConfig struct {
	DelaySeconds       int              `toml:"delay_seconds"`
	Cooldowns          []CooldownConfig `toml:"cooldowns"`
	MaxScrolls         int              `toml:"max_scrolls"`
	MaxDurationMinutes int              `toml:"max_duration_minutes"`
	Dedupe             bool             `toml:"dedupe"`
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty means <data dir>/archive.db
}

type CacheConfig struct {
	Enabled bool `toml:"enabled"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

type ScheduleConfig struct {
	Cron       string `toml:"cron"`
	Timezone   string `toml:"timezone"`
	WindowDays int    `toml:"window_days"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			LoginURL: "https://twitter.com/login",
			Endpoint: "https://twitter.com/search",
		},
		Browser: BrowserConfig{
			Headless: false,
		},
		Login: LoginConfig{
			FieldTimeoutSeconds: 4,
			FieldDelaySeconds:   2,
			SettleSeconds:       7,
			ReuseSession:        false,
		},
		Scraping: ScrapingConfig{
			DelaySeconds: 5,
			Cooldowns: []CooldownConfig{
				{Every: 50, PauseSeconds: 30},
				{Every: 200, PauseSeconds: 120},
			},
			MaxScrolls:         5000,
			MaxDurationMinutes: 360,
			Dedupe:             true,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Cache: CacheConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Schedule: ScheduleConfig{
			Cron:       "0 */6 * * *",
			Timezone:   "UTC",
			WindowDays: 1,
		},
	}
}

// Delay returns the fixed pause after every scroll.
func (s ScrapingConfig) Delay() time.Duration {
	return time.Duration(s.DelaySeconds) * time.Second
}

// MaxDuration returns the wall-clock bound on a scroll loop, zero for none.
func (s ScrapingConfig) MaxDuration() time.Duration {
	return time.Duration(s.MaxDurationMinutes) * time.Minute
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "searchscroll"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "searchscroll"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StorePath returns the archive database path, defaulting into the config dir.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archive.db"), nil
}

// Load reads config from path, or from ConfigPath when path is empty.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes config to path, or to ConfigPath when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
