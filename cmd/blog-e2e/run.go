package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"blog-e2e/internal/browser"
	"blog-e2e/internal/config"
	"blog-e2e/internal/contract"
	"blog-e2e/internal/executor"
	"blog-e2e/internal/reporter"
)

const suiteName = "Blog app"

func init() {
	def := config.Default()
	fs := runCmd.Flags()
	addTargetFlags(fs)
	addFilterFlags(fs)

	fs.String("browser", def.Browser, "browser engine: chromium, firefox or webkit")
	fs.Bool("headless", def.Headless, "run the browser without a window")
	fs.Duration("slow-mo", def.SlowMo, "delay every browser action by this much")
	fs.Duration("expect-timeout", def.ExpectTimeout, "how long assertions poll before failing")
	fs.Duration("action-timeout", def.ActionTimeout, "default timeout for clicks, fills and navigation")
	fs.Duration("scenario-timeout", def.ScenarioTimeout, "hard deadline for one scenario including its hooks")

	fs.String("out", def.OutDir, "output directory for artifacts")
	fs.Bool("json", def.Reports.JSON, "write results.json")
	fs.Bool("junit", def.Reports.JUnit, "write junit.xml")
	fs.Bool("html", def.Reports.HTML, "write report.html")
	fs.Bool("screenshots", def.Screenshots, "save a screenshot of every failing scenario")

	fs.Bool("contract", def.Contract, "validate API traffic against the blog API contract and write coverage.json")
	fs.Bool("contract-strict", def.ContractStrict, "fail scenarios whose API traffic violates the contract")
	fs.Float64("coverage-min", def.CoverageMin, "fail if contract coverage percent < this threshold")

	fs.Int("parallel", def.Parallel, "scenarios to run at once (capped by the number of base URLs)")
	fs.Bool("fail-fast", def.FailFast, "stop after the first failing scenario (forces --parallel=1)")
	fs.BoolP("verbose", "v", def.Verbose, "print failure details for every scenario")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the blog app scenarios in a browser",
	Long: `Run the blog app scenarios in a browser.

Every scenario gets a fresh browser context and an exclusive backend from the
--base-url pool. Reports are written to --out.

Examples:
  blog-e2e run --base-url http://localhost:5173
  blog-e2e run --base-url http://localhost:3003,http://localhost:3004 --parallel 2
  blog-e2e run --include-tags likes --headless=false --slow-mo 250ms`,
	Args: cobra.NoArgs,
	RunE: runSuite,
}

func runSuite(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fx, err := loadFixtures(cfg)
	if err != nil {
		return err
	}
	cases, err := selectCases(cfg, fx)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return errors.New("no scenarios left after filtering")
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("mkdir out: %w", err)
	}

	var rec *contract.Recorder
	if cfg.Contract {
		v, err := contract.BlogAPI()
		if err != nil {
			return fmt.Errorf("load contract: %w", err)
		}
		rec = contract.NewRecorder(v)
	}

	l, err := browser.Launch(browser.Options{
		Browser:       cfg.Browser,
		Headless:      cfg.Headless,
		SlowMo:        cfg.SlowMo,
		ActionTimeout: cfg.ActionTimeout,
		ExpectTimeout: cfg.ExpectTimeout,
		CaptureAPI:    rec != nil,
	}, logger.WithPrefix("browser"))
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	sessions := func(ctx context.Context, baseURL string) (executor.Session, error) {
		s, err := l.NewSession(ctx, baseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	r := executor.New(sessions, fx, cfg.BaseURLs...).
		WithLogger(logger.WithPrefix("run")).
		WithParallel(cfg.Parallel).
		WithFailFast(cfg.FailFast).
		WithTimeout(cfg.ScenarioTimeout)
	if cfg.Screenshots {
		r = r.WithScreenshots(filepath.Join(cfg.OutDir, "screenshots"))
	}
	if rec != nil {
		r = r.WithContract(rec, cfg.ContractStrict)
	}

	res, err := r.Run(cmd.Context(), cases)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if err := writeReports(cfg, res); err != nil {
		return err
	}

	passed := res.Passed
	if rec != nil {
		if err := writeFile(filepath.Join(cfg.OutDir, "coverage.json"), func(f *os.File) error {
			return reporter.WriteCoverage(f, rec.Doc(), rec.Covered(), rec.Violations())
		}); err != nil {
			return err
		}
		if cfg.CoverageMin >= 0 {
			rep := reporter.ComputeCoverage(rec.Doc(), rec.Covered())
			if rep.Percent+1e-9 < cfg.CoverageMin {
				fmt.Fprintf(os.Stderr, "coverage gate failed: got %.2f%%, need >= %.2f%%\n", rep.Percent, cfg.CoverageMin)
				passed = false
			}
		}
	}

	printSummary(res, !res.Passed || cfg.Verbose)

	if !passed {
		return errFailed
	}
	fmt.Println("PASS")
	return nil
}

func writeReports(cfg config.Config, res *executor.SuiteResult) error {
	// JSON (and remember the path for HTML parity)
	var jsonPath string
	if cfg.Reports.JSON {
		jsonPath = filepath.Join(cfg.OutDir, "results.json")
		if err := writeFile(jsonPath, func(f *os.File) error {
			return reporter.WriteJSON(f, res)
		}); err != nil {
			return err
		}
	}

	if cfg.Reports.JUnit {
		if err := writeFile(filepath.Join(cfg.OutDir, "junit.xml"), func(f *os.File) error {
			return reporter.WriteJUnit(f, suiteName, res)
		}); err != nil {
			return err
		}
	}

	// HTML: if JSON is enabled, render from results.json to guarantee parity
	if cfg.Reports.HTML {
		htmlPath := filepath.Join(cfg.OutDir, "report.html")
		return writeFile(htmlPath, func(f *os.File) error {
			if jsonPath != "" {
				return reporter.WriteHTMLFromJSONPath(f, suiteName, jsonPath)
			}
			return reporter.WriteHTML(f, suiteName, res)
		})
	}
	return nil
}

func printSummary(res *executor.SuiteResult, details bool) {
	var passed int
	for _, sc := range res.Scenarios {
		if sc.Passed {
			passed++
		}
	}
	fmt.Fprintf(os.Stderr, "%d/%d scenarios passed in %.1fs (run %s)\n",
		passed, len(res.Scenarios), res.DurationMs/1000, res.RunID)
	if len(res.Violations) > 0 {
		fmt.Fprintf(os.Stderr, "%d API contract violation(s); see coverage.json\n", len(res.Violations))
	}
	if !details {
		return
	}
	for _, sc := range res.Scenarios {
		if sc.Passed {
			continue
		}
		fmt.Fprintf(os.Stderr, "\nScenario FAILED: %s (backend %s)\n", sc.Name, sc.Backend)
		for _, st := range sc.Steps {
			if st.Passed || st.Skipped {
				continue
			}
			fmt.Fprintf(os.Stderr, "  %s %q:\n", st.Kind, st.Name)
			for _, e := range st.Errors {
				fmt.Fprintf(os.Stderr, "    - %s\n", e)
			}
		}
		if sc.Screenshot != "" {
			fmt.Fprintf(os.Stderr, "  screenshot: %s\n", sc.Screenshot)
		}
	}
}
