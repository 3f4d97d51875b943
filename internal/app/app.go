package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/searchscroll/internal/auth"
	"github.com/ibeckermayer/searchscroll/internal/config"
	"github.com/ibeckermayer/searchscroll/internal/export"
	"github.com/ibeckermayer/searchscroll/internal/logging"
	"github.com/ibeckermayer/searchscroll/internal/metrics"
	"github.com/ibeckermayer/searchscroll/internal/params"
	"github.com/ibeckermayer/searchscroll/internal/scraper"
	"github.com/ibeckermayer/searchscroll/internal/store"
	"github.com/ibeckermayer/searchscroll/internal/types"
)

// Browser is an exclusively owned browser session
type Browser interface {
	auth.Page
	scraper.Page
	Close() error
}

// BrowserOpener acquires a browser session
type BrowserOpener func(ctx context.Context) (Browser, error)

// App runs the scrape pipeline: authenticate, scroll, extract, write, archive.
type App struct {
	config *config.Config
	log    zerolog.Logger

	openBrowser BrowserOpener
	authManager *auth.Manager
	scroller    *scraper.Scroller
	extractor   *scraper.Extractor
	archive     *store.Store // nil disables archiving
	cache       *store.Cache // nil disables step caching
	metrics     *metrics.Recorder
	now         func() time.Time
}

// Deps are the collaborators of an App. Archive, Cache and Metrics may be nil.
type Deps struct {
	OpenBrowser BrowserOpener
	Auth        *auth.Manager
	Archive     *store.Store
	Cache       *store.Cache
	Metrics     *metrics.Recorder
}

// New creates a new App instance.
func New(cfg *config.Config, deps Deps, log zerolog.Logger) *App {
	limits := scraper.Limits{
		MaxScrolls:  cfg.Scraping.MaxScrolls,
		MaxDuration: cfg.Scraping.MaxDuration(),
	}

	return &App{
		config:      cfg,
		log:         logging.Component(log, "app"),
		openBrowser: deps.OpenBrowser,
		authManager: deps.Auth,
		scroller:    scraper.NewScroller(scraper.PacingFromConfig(cfg.Scraping), limits, log, deps.Metrics),
		extractor:   scraper.NewExtractor(cfg.Scraping.Dedupe, log),
		archive:     deps.Archive,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// Run performs one full scrape for p. The browser is released on every path.
// On failure the stats reached so far are returned with the error and the
// archived run is marked failed.
func (a *App) Run(ctx context.Context, p *params.RunParameters) (stats *types.RunStats, err error) {
	stats = &types.RunStats{StartedAt: a.now()}
	defer func() { a.metrics.RunFinished(err) }()

	log := a.log.With().Object("params", p).Logger()
	log.Info().Msg("Starting scrape")

	runID := a.beginRun(ctx, p)
	defer func() { a.failRun(ctx, runID, err, stats) }()

	html, err := a.collectPage(ctx, p, stats)
	if err != nil {
		return stats, err
	}

	if a.cache != nil {
		if path, err := a.cache.SaveTextOutput(store.StepPage, html, ".html"); err != nil {
			log.Warn().Err(err).Msg("Failed to cache page markup")
		} else {
			log.Debug().Str("path", path).Msg("Cached page markup")
		}
	}

	records, err := a.extractor.Extract(strings.NewReader(html))
	if err != nil {
		return stats, fmt.Errorf("failed to extract records: %w", err)
	}

	if err := a.finish(ctx, runID, p, records, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// ExtractFile re-parses saved page markup and writes the CSV for p without a browser.
func (a *App) ExtractFile(ctx context.Context, htmlPath string, p *params.RunParameters) (stats *types.RunStats, err error) {
	stats = &types.RunStats{StartedAt: a.now()}
	defer func() { a.metrics.RunFinished(err) }()

	records, err := a.extractor.ExtractFile(htmlPath)
	if err != nil {
		return stats, fmt.Errorf("failed to extract %s: %w", htmlPath, err)
	}

	runID := a.beginRun(ctx, p)
	defer func() { a.failRun(ctx, runID, err, stats) }()

	if err := a.finish(ctx, runID, p, records, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// OutputPath returns where the CSV for p is written.
func (a *App) OutputPath(p *params.RunParameters) string {
	return filepath.Join(a.config.Output.Dir, p.OutputFilename())
}

// collectPage logs in, opens the search timeline and scrolls it to the end.
func (a *App) collectPage(ctx context.Context, p *params.RunParameters, stats *types.RunStats) (string, error) {
	b, err := a.openBrowser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close browser cleanly")
		}
	}()

	restored := false
	if a.config.Login.ReuseSession {
		restored, err = a.authManager.RestoreSession(ctx, b)
		if err != nil {
			a.log.Warn().Err(err).Msg("Could not restore session, logging in")
		}
	}
	if !restored {
		if err := a.authManager.Login(ctx, b, p.Credentials); err != nil {
			return "", fmt.Errorf("login failed: %w", err)
		}
	}

	url := p.SearchURL(a.config.Search.Endpoint)
	a.log.Info().Str("url", url).Msg("Opening search timeline")
	if err := b.Navigate(ctx, url); err != nil {
		return "", fmt.Errorf("failed to open search timeline: %w", err)
	}

	res, err := a.scroller.Scroll(ctx, b)
	if err != nil {
		return "", fmt.Errorf("failed to scroll timeline: %w", err)
	}
	stats.Scrolls = res.Scrolls
	stats.Truncated = res.Truncated

	return res.HTML, nil
}

// finish writes the CSV, caches and archives the records.
func (a *App) finish(ctx context.Context, runID string, p *params.RunParameters, records []types.Record, stats *types.RunStats) error {
	stats.Extracted = len(records)
	a.metrics.RecordsExtracted(len(records))

	if a.cache != nil {
		if _, err := store.SaveStepOutput(a.cache, store.StepRecords, records); err != nil {
			a.log.Warn().Err(err).Msg("Failed to cache records")
		}
	}

	path := a.OutputPath(p)
	written, err := export.WriteFile(path, records)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	stats.Written = written
	stats.Output = path
	stats.EndedAt = a.now()
	a.metrics.RecordsWritten(written)

	a.log.Info().
		Int("extracted", stats.Extracted).
		Int("written", written).
		Str("path", path).
		Msg("File successfully written")

	if a.archive != nil && runID != "" {
		if err := a.archive.SaveRecords(ctx, runID, records); err != nil {
			a.log.Warn().Err(err).Msg("Failed to archive records")
		}
		if err := a.archive.FinishRun(ctx, runID, *stats); err != nil {
			a.log.Warn().Err(err).Msg("Failed to archive run")
		}
	}

	return nil
}

// failRun closes an archived run that ended in err. It is a no-op on success,
// where finish already recorded the outcome.
func (a *App) failRun(ctx context.Context, runID string, err error, stats *types.RunStats) {
	if err == nil || a.archive == nil || runID == "" {
		return
	}
	stats.EndedAt = a.now()
	// ctx may be the reason the run failed
	if ferr := a.archive.FailRun(context.WithoutCancel(ctx), runID, err, *stats); ferr != nil {
		a.log.Warn().Err(ferr).Msg("Failed to archive run failure")
	}
}

func (a *App) beginRun(ctx context.Context, p *params.RunParameters) string {
	if a.archive == nil {
		return ""
	}
	runID, err := a.archive.BeginRun(ctx, p)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to archive run start")
		return ""
	}
	return runID
}
