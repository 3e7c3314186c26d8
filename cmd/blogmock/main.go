package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blog-e2e/internal/blogmock"
	"blog-e2e/internal/logging"
	"blog-e2e/internal/parser"
)

var (
	flagAddr     string
	flagSeed     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "blogmock",
	Short: "In-memory blog app with the testing API, for running blog-e2e locally",
	Long: `blogmock serves a minimal blog app UI at / and its REST API under /api,
including POST /api/testing/reset. State lives in memory and is lost on exit.

Examples:
  blogmock --addr :3003
  blogmock --seed fixtures.yaml --log-level debug`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":3003", "listen address")
	rootCmd.Flags().StringVar(&flagSeed, "seed", "", "fixtures YAML whose users are created at startup")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func serve(cmd *cobra.Command, args []string) error {
	opts := logging.DefaultOptions()
	opts.Level = flagLogLevel
	opts.Prefix = "blogmock"
	logger := logging.New(opts)

	srv := blogmock.New(blogmock.NewStore(), logger)
	if flagSeed != "" {
		fx, err := parser.New().ParseFile(flagSeed)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if err := srv.Preload(fx.Users); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("preloaded users", "count", len(fx.Users))
	}

	hs := &http.Server{
		Addr:              flagAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", flagAddr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}
