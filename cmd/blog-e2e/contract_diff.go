package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"blog-e2e/internal/config"
	"blog-e2e/internal/contract"
)

var flagFailOnDrift bool

func init() {
	fs := contractDiffCmd.Flags()
	fs.String("out", config.Default().OutDir, "output directory for contract-drift.json")
	fs.BoolVar(&flagFailOnDrift, "fail-on-drift", false, "exit 1 when the published API differs from the contract")
	rootCmd.AddCommand(contractDiffCmd)
}

var contractDiffCmd = &cobra.Command{
	Use:   "contract-diff <published.yaml|url>",
	Short: "Compare the built-in API contract with a published OpenAPI document",
	Long: `Report operations the scenarios rely on that the deployment no longer publishes,
operations it publishes that the contract does not know about, and operations
whose documented status codes changed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		own, err := contract.BlogAPI()
		if err != nil {
			return fmt.Errorf("contract: %w", err)
		}
		var published *contract.Validator
		if src := args[0]; strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			published, err = contract.LoadFromURL(cmd.Context(), src)
		} else {
			published, err = contract.LoadFromFile(src)
		}
		if err != nil {
			return fmt.Errorf("published: %w", err)
		}

		rep := contract.Drift(own.Doc(), published.Doc())
		if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
			return fmt.Errorf("mkdir out: %w", err)
		}
		path := filepath.Join(cfg.OutDir, "contract-drift.json")
		if err := writeFile(path, func(f *os.File) error {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, op := range rep.Missing {
			fmt.Fprintf(w, "- %s\n", op)
		}
		for _, op := range rep.Extra {
			fmt.Fprintf(w, "+ %s\n", op)
		}
		for _, c := range rep.ChangedStatus {
			fmt.Fprintf(w, "~ %s %v -> %v\n", c.Op, c.Contract, c.Published)
		}
		logger.Info("contract drift", "missing", len(rep.Missing), "extra", len(rep.Extra),
			"changed", len(rep.ChangedStatus), "report", path)

		if flagFailOnDrift && !rep.Empty() {
			return errFailed
		}
		return nil
	},
}
