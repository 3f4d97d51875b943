package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/auth"
	"github.com/ibeckermayer/searchscroll/internal/metrics"
	"github.com/ibeckermayer/searchscroll/internal/params"
	"github.com/ibeckermayer/searchscroll/internal/types"
)

// paramFlags are the run parameter flags shared by scrape and extract
type paramFlags struct {
	username string
	handle   string
	mode     string
	since    string
	until    string
	keyring  bool
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "Twitter account to log in with (or "+envUsername+")")
	cmd.Flags().StringVar(&f.handle, "handle", "", "user to search for, with leading '@'")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "search tweets sent to or by the user (to|by)")
	cmd.Flags().StringVar(&f.since, "since", "", "first day of the search window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.until, "until", "", "day after the search window (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.keyring, "keyring", true, "look up the password in the system keyring")
}

func (f *paramFlags) preset() params.Preset {
	username := f.username
	if username == "" {
		username = os.Getenv(envUsername)
	}
	return params.Preset{
		Username: username,
		Password: os.Getenv(envPassword),
		Handle:   f.handle,
		Mode:     f.mode,
		Since:    f.since,
		Until:    f.until,
	}
}

// collect fills in anything the flags and environment left out by prompting.
func (f *paramFlags) collect(interactive bool) (*params.RunParameters, error) {
	var lookup params.SecretLookup
	if f.keyring {
		secrets := auth.NewSecretStore()
		lookup = func(username string) (string, error) {
			secret, err := secrets.Get(username)
			if err != nil && !errors.Is(err, auth.ErrNoSecret) {
				// An unavailable keyring falls back to the prompt
				yellow := color.New(color.FgYellow).SprintFunc()
				fmt.Fprintf(os.Stderr, "%s %v\n", yellow("Warning:"), err)
				return "", auth.ErrNoSecret
			}
			return secret, err
		}
	}

	var prompter *params.Prompter
	if interactive {
		prompter = params.NewPrompter(os.Stdin, os.Stderr)
	}

	return params.NewCollector(prompter, lookup).Collect(f.preset())
}

var (
	scrapeParams     paramFlags
	scrapeOutputDir  string
	scrapeHeadless   bool
	scrapeMaxScrolls int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Log in, scroll a search timeline and write its tweets to CSV",
	Long: `Log into Twitter, open the search timeline for tweets sent to or by a
user between two dates, scroll until no more tweets load and write them to
tweets_{mode}_{handle}_from_{since}_to_{until}.csv.

Any parameter not given as a flag is prompted for.`,
	Example: `  # Fully interactive
  searchscroll scrape

  # Tweets by @golang in January 2020, headless
  searchscroll scrape -u myaccount --handle @golang --mode by \
    --since 2020-01-01 --until 2020-02-01 --headless`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeParams.register(scrapeCmd)
	scrapeCmd.Flags().StringVarP(&scrapeOutputDir, "output-dir", "o", "", "directory for the CSV file (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeHeadless, "headless", false, "run Chrome without a window")
	scrapeCmd.Flags().IntVar(&scrapeMaxScrolls, "max-scrolls", 0, "stop after this many scrolls (default from config)")
}

func runScrape(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	if scrapeOutputDir != "" {
		env.cfg.Output.Dir = scrapeOutputDir
	}
	if cmd.Flags().Changed("headless") {
		env.cfg.Browser.Headless = scrapeHeadless
	}
	if cmd.Flags().Changed("max-scrolls") {
		env.cfg.Scraping.MaxScrolls = scrapeMaxScrolls
	}

	p, err := scrapeParams.collect(true)
	if err != nil {
		return err
	}

	a, cleanup, err := newApp(env, metrics.New())
	if err != nil {
		return err
	}
	defer cleanup()

	printBanner(p)

	stats, err := a.Run(cmd.Context(), p)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	printSummary(stats)
	return nil
}

func printBanner(p *params.RunParameters) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %s\n", cyan("Searching:"), p.Query())
}

func printSummary(stats *types.RunStats) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(os.Stderr, "%s %d tweets written to %s (%d parsed, %d scrolls)\n",
		green("Done:"), stats.Written, stats.Output, stats.Extracted, stats.Scrolls)
	if stats.Truncated {
		fmt.Fprintf(os.Stderr, "%s scrolling stopped at the configured limit; the timeline may hold more tweets\n",
			yellow("Warning:"))
	}
}
