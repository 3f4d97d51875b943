package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/metrics"
	"github.com/ibeckermayer/searchscroll/internal/params"
	"github.com/ibeckermayer/searchscroll/internal/scheduler"
)

const watchJob = "scrape"

var (
	watchParams      paramFlags
	watchWindowDays  int
	watchMetricsAddr string
	watchNow         bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scrape a rolling window on the configured cron schedule",
	Long: `Run the scrape pipeline on schedule.cron from the config file, each time
over the last --window-days days up to and including today.

Nothing is prompted for: the account comes from --username or
SEARCHSCROLL_USERNAME and the password from SEARCHSCROLL_PASSWORD or the
system keyring (see 'searchscroll auth remember').`,
	Example: `  searchscroll watch -u myaccount --handle @golang --mode to --metrics-addr :9090`,
	Args:    cobra.NoArgs,
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchParams.username, "username", "u", "", "Twitter account to log in with (or "+envUsername+")")
	watchCmd.Flags().StringVar(&watchParams.handle, "handle", "", "user to search for, with leading '@'")
	watchCmd.Flags().StringVarP(&watchParams.mode, "mode", "m", "", "search tweets sent to or by the user (to|by)")
	watchCmd.Flags().BoolVar(&watchParams.keyring, "keyring", true, "look up the password in the system keyring")
	watchCmd.Flags().IntVar(&watchWindowDays, "window-days", 0, "days covered by each run (default from config)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "also run once immediately")
	_ = watchCmd.MarkFlagRequired("handle")
	_ = watchCmd.MarkFlagRequired("mode")
}

// rollingWindow returns the since/until dates covering the days days ending
// with the day of now. until is exclusive.
func rollingWindow(now time.Time, days int) (since, until string) {
	if days < 1 {
		days = 1
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := today.AddDate(0, 0, 1)
	return end.AddDate(0, 0, -days).Format(params.DateLayout), end.Format(params.DateLayout)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	cfg := env.cfg

	windowDays := cfg.Schedule.WindowDays
	if watchWindowDays > 0 {
		windowDays = watchWindowDays
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %s: %w", cfg.Schedule.Timezone, err)
	}

	collect := func() (*params.RunParameters, error) {
		watchParams.since, watchParams.until = rollingWindow(time.Now().In(loc), windowDays)
		return watchParams.collect(false)
	}

	// Fail on bad parameters or missing credentials before waiting for the first tick
	if _, err := collect(); err != nil {
		return err
	}

	rec := metrics.New()
	a, cleanup, err := newApp(env, rec)
	if err != nil {
		return err
	}
	defer cleanup()

	// Scrolling may run up to its limit; leave room for login and writing
	sched, err := scheduler.New(cfg.Schedule.Timezone, cfg.Scraping.MaxDuration()+15*time.Minute, env.log)
	if err != nil {
		return err
	}

	// RunNow bypasses the cron chain, so guard against overlap here too
	var running sync.Mutex
	job := func(ctx context.Context) error {
		if !running.TryLock() {
			env.log.Warn().Msg("Previous scrape still running, skipping")
			return nil
		}
		defer running.Unlock()

		p, err := collect()
		if err != nil {
			return err
		}
		stats, err := a.Run(ctx, p)
		if err != nil {
			return err
		}
		env.log.Info().
			Str("output", stats.Output).
			Int("written", stats.Written).
			Bool("truncated", stats.Truncated).
			Msg("Scheduled scrape finished")
		return nil
	}

	if err := sched.AddJob(watchJob, cfg.Schedule.Cron, job); err != nil {
		return err
	}

	if watchMetricsAddr != "" {
		stop := serveMetrics(ctx, watchMetricsAddr, rec, env)
		defer stop()
	}

	sched.Start(ctx)
	for _, info := range sched.ListJobs() {
		env.log.Info().Str("job", info.Name).Time("next_run", info.NextRun).Msg("Watching")
	}

	if watchNow {
		if err := sched.RunNow(watchJob, job); err != nil {
			env.log.Error().Err(err).Msg("Initial scrape failed")
		}
	}

	<-ctx.Done()
	<-sched.Stop().Done()
	env.log.Info().Msg("Stopped watching")
	return nil
}

// serveMetrics exposes rec on addr/metrics until the returned func is called.
func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder, env *environment) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		env.log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}
}
