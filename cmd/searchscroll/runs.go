package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent scrape runs from the archive",
	Long: `List the most recent runs recorded in the archive database with their
outcome, counters and output file.`,
	Args: cobra.NoArgs,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	path, err := env.cfg.StorePath()
	if err != nil {
		return fmt.Errorf("failed to get archive path: %w", err)
	}
	archive, err := store.New(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	runs, err := archive.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	printRuns(runs)
	return nil
}

func printRuns(runs []store.Run) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tQUERY\tSTATUS\tSCROLLS\tWRITTEN\tOUTPUT")
	for _, r := range runs {
		status := r.Status
		switch r.Status {
		case store.StatusOK:
			status = green(status)
			if r.Truncated {
				status += yellow(" (truncated)")
			}
		case store.StatusFailed:
			status = red(status) + ": " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s:%s %s..%s\t%s\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Mode, r.Handle, r.Since, r.Until,
			status, r.Scrolls, r.Written, r.OutputPath)
	}
	w.Flush()
}
