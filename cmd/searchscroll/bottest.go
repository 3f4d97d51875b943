package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/searchscroll/internal/browser"
)

const botTestURL = "https://bot.sannysoft.com"

var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Open a browser fingerprint audit page with the scraper's launch options",
	Long: `Open bot.sannysoft.com in a visible Chrome window launched with the same
stealth options the scraper uses, so the browser fingerprint can be inspected.`,
	Args: cobra.NoArgs,
	RunE: runBotTest,
}

func init() {
	rootCmd.AddCommand(botTestCmd)
}

func runBotTest(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	bcfg := browserConfig(env.cfg)
	bcfg.Headless = false // visible so it can be inspected

	env.log.Info().Str("url", botTestURL).Msg("Opening fingerprint audit page")

	session, err := browser.Open(cmd.Context(), bcfg, env.log)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Navigate(cmd.Context(), botTestURL); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Press Enter to close the browser...")
	done := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		close(done)
	}()

	select {
	case <-done:
	case <-cmd.Context().Done():
	}
	return nil
}
