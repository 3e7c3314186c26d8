package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blog-e2e/internal/seed"
)

func init() {
	addTargetFlags(seedCmd.Flags())
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset every backend and create the fixture users",
	Long: `Reset every configured backend through POST /api/testing/reset and create the
fixture users through POST /api/users, leaving the app ready for manual use.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fx, err := loadFixtures(cfg)
		if err != nil {
			return err
		}
		for _, b := range cfg.BaseURLs {
			c := seed.New(b).WithLogger(logger.WithPrefix("seed"))
			if err := c.Seed(cmd.Context(), fx.Users); err != nil {
				return fmt.Errorf("seed %s: %w", b, err)
			}
			logger.Info("seeded", "backend", b, "users", len(fx.Users))
		}
		return nil
	},
}
