package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/config"
)

var openCmd = &cobra.Command{
	Use:       "open <config|cache|output>",
	Short:     "Open the config file, step cache or output directory",
	Long:      `Open a searchscroll path with the desktop's default handler.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"config", "cache", "output"},
	RunE:      runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	var path string
	var err error

	switch args[0] {
	case "config":
		path = configFile
		if path == "" {
			path, err = config.ConfigPath()
		}
	case "cache":
		path, err = config.CacheDir()
		if err == nil {
			err = os.MkdirAll(path, 0755)
		}
	case "output":
		var env *environment
		if env, err = loadEnvironment(); err == nil {
			path, err = filepath.Abs(env.cfg.Output.Dir)
		}
	default:
		return fmt.Errorf("unknown target: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get path: %w", err)
	}

	if err := browser.OpenFile(path); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}
