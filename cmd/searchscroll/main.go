// Command searchscroll logs into Twitter with a real browser, scrolls a search
// timeline for tweets to or by a user and writes them to a CSV file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		return 1
	}
	return 0
}
