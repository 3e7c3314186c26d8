package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errFailed marks a completed run with failing scenarios (exit 1). Any
// other error is a usage or setup problem (exit 2).
var errFailed = errors.New("FAIL")

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "blog-e2e",
	Short: "Browser end-to-end tests for the blog app",
	Long: `blog-e2e drives the blog app through a real browser: it resets the backend,
seeds users through the testing API, then logs in, creates, likes and removes
blogs and checks what the page shows.

Settings come from defaults, an optional blog-e2e.yaml, BLOG_E2E_* environment
variables and flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./blog-e2e.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, errFailed):
		fmt.Println("FAIL")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}
