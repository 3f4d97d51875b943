package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/auth"
	"github.com/ibeckermayer/searchscroll/internal/config"
	"github.com/ibeckermayer/searchscroll/internal/metrics"
	"github.com/ibeckermayer/searchscroll/internal/params"
	"github.com/ibeckermayer/searchscroll/internal/store"
)

var (
	extractParams    paramFlags
	extractHTML      string
	extractOutputDir string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write the CSV for previously saved timeline markup",
	Long: `Parse a saved search timeline page and write its tweets to CSV without
starting a browser. Without --html the most recent page in the step cache
(cache.enabled in the config) is used. The parameters only name the output
file, so no password is needed.`,
	Example: `  searchscroll extract --html page.html --handle @golang --mode by \
    --since 2020-01-01 --until 2020-02-01

  # Re-parse the last cached scrape
  searchscroll extract --handle @golang --mode by --since 2020-01-01 --until 2020-02-01`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractHTML, "html", "", "saved timeline markup (default: latest cached page)")
	extractCmd.Flags().StringVar(&extractParams.handle, "handle", "", "user the page was searched for, with leading '@'")
	extractCmd.Flags().StringVarP(&extractParams.mode, "mode", "m", "", "to|by")
	extractCmd.Flags().StringVar(&extractParams.since, "since", "", "first day of the search window (YYYY-MM-DD)")
	extractCmd.Flags().StringVar(&extractParams.until, "until", "", "day after the search window (YYYY-MM-DD)")
	extractCmd.Flags().StringVarP(&extractOutputDir, "output-dir", "o", "", "directory for the CSV file (default from config)")
	for _, name := range []string{"handle", "mode", "since", "until"} {
		_ = extractCmd.MarkFlagRequired(name)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	if extractOutputDir != "" {
		env.cfg.Output.Dir = extractOutputDir
	}

	// Nothing is logged in, so no credentials are needed
	p, err := params.New(auth.Credentials{}, extractParams.handle, extractParams.mode, extractParams.since, extractParams.until)
	if err != nil {
		return err
	}

	htmlPath := extractHTML
	if htmlPath == "" {
		dir, err := config.CacheDir()
		if err != nil {
			return fmt.Errorf("failed to get cache dir: %w", err)
		}
		if htmlPath, err = latestCachedPage(dir); err != nil {
			return err
		}
		env.log.Info().Str("path", htmlPath).Msg("Using latest cached page")
	}

	a, cleanup, err := newApp(env, metrics.New())
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := a.ExtractFile(cmd.Context(), htmlPath, p)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	printSummary(stats)
	return nil
}

// latestCachedPage finds the newest page markup in the step cache under dir.
func latestCachedPage(dir string) (string, error) {
	path, err := store.NewCache(dir).LatestStepFile(store.StepPage)
	if err != nil {
		return "", fmt.Errorf("%w; pass --html or enable cache.enabled and scrape first", err)
	}
	return path, nil
}
