package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/app"
	"github.com/ibeckermayer/searchscroll/internal/auth"
	"github.com/ibeckermayer/searchscroll/internal/browser"
	"github.com/ibeckermayer/searchscroll/internal/config"
	"github.com/ibeckermayer/searchscroll/internal/logging"
	"github.com/ibeckermayer/searchscroll/internal/metrics"
	"github.com/ibeckermayer/searchscroll/internal/store"
)

var (
	version = "dev"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
)

// Environment variables consulted for credentials
const (
	envUsername = "SEARCHSCROLL_USERNAME"
	envPassword = "SEARCHSCROLL_PASSWORD"
)

var rootCmd = &cobra.Command{
	Use:   "searchscroll",
	Short: "Scrape a Twitter search timeline into a CSV file",
	Long: `searchscroll drives a real Chrome browser to log into Twitter, open the
search timeline for tweets sent to or by a user within a date range, scroll it
to the end and write every tweet found to a CSV file.

Credentials are read from flags, the SEARCHSCROLL_USERNAME and
SEARCHSCROLL_PASSWORD environment variables (a .env file is honored), the
system keyring, or prompted for.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is <user config dir>/searchscroll/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`searchscroll {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// environment is the loaded configuration and logger shared by commands
type environment struct {
	cfg *config.Config
	log zerolog.Logger
}

// loadEnvironment loads the config, creating a default one on first run.
func loadEnvironment() (*environment, error) {
	cfg, created, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.New(level, cfg.Logging.Pretty && !noColor)
	if err != nil {
		return nil, err
	}

	if created {
		path := configFile
		if path == "" {
			path, _ = config.ConfigPath()
		}
		log.Info().Str("path", path).Msg("Created default config")
	}

	return &environment{cfg: cfg, log: log}, nil
}

func loadConfig(path string) (cfg *config.Config, created bool, err error) {
	cfg, err = config.Load(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to load config: %w", err)
	}

	// First run
	cfg = config.Default()
	if err := cfg.Save(path); err != nil {
		return nil, false, fmt.Errorf("failed to save default config: %w", err)
	}
	return cfg, true, nil
}

func browserConfig(cfg *config.Config) browser.Config {
	return browser.Config{
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
		NoSandbox: cfg.Browser.NoSandbox,
		UserAgent: cfg.Browser.UserAgent,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// newAuthManager builds the login flow. Cookies are only persisted when
// session reuse is enabled.
func newAuthManager(env *environment) (*auth.Manager, error) {
	cfg := env.cfg

	var cookieStore *auth.CookieStore
	if cfg.Login.ReuseSession {
		path, err := auth.DefaultCookieStorePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get cookie store path: %w", err)
		}
		cookieStore = auth.NewCookieStore(path)
	}

	return auth.NewManager(cookieStore, auth.LoginOptions{
		URL:          cfg.Search.LoginURL,
		FieldTimeout: seconds(cfg.Login.FieldTimeoutSeconds),
		FieldDelay:   seconds(cfg.Login.FieldDelaySeconds),
		Settle:       seconds(cfg.Login.SettleSeconds),
	}, env.log), nil
}

// newApp wires the pipeline from config. The returned func releases the archive.
func newApp(env *environment, rec *metrics.Recorder) (*app.App, func(), error) {
	cfg := env.cfg
	cleanup := func() {}

	authManager, err := newAuthManager(env)
	if err != nil {
		return nil, cleanup, err
	}

	deps := app.Deps{
		OpenBrowser: func(ctx context.Context) (app.Browser, error) {
			s, err := browser.Open(ctx, browserConfig(cfg), env.log)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Auth:    authManager,
		Metrics: rec,
	}

	if cfg.Store.Enabled {
		path, err := cfg.StorePath()
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to get archive path: %w", err)
		}
		archive, err := store.New(path)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open archive: %w", err)
		}
		deps.Archive = archive
		cleanup = func() {
			if err := archive.Close(); err != nil {
				env.log.Warn().Err(err).Msg("Failed to close archive")
			}
		}
	}

	if cfg.Cache.Enabled {
		dir, err := config.CacheDir()
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to get cache dir: %w", err)
		}
		deps.Cache = store.NewCache(dir)
	}

	return app.New(cfg, deps, env.log), cleanup, nil
}

func printError(err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
}
