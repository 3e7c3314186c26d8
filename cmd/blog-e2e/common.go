package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"blog-e2e/internal/config"
	"blog-e2e/internal/ir"
	"blog-e2e/internal/logging"
	"blog-e2e/internal/parser"
	"blog-e2e/internal/scenario"
	"blog-e2e/internal/vars"
)

func addTargetFlags(fs *pflag.FlagSet) {
	def := config.Default()
	fs.StringSlice("base-url", def.BaseURLs, "base URL of the app under test; repeat or comma-separate for a backend pool")
	fs.String("fixtures", "", "fixtures YAML (default: built-in users and blogs)")
	fs.StringSlice("env", nil, "comma-separated JSON env files used to expand ${VAR|default} in fixtures")
}

func addFilterFlags(fs *pflag.FlagSet) {
	fs.StringSlice("include-tags", nil, "comma-separated tags to include (OR semantics)")
	fs.StringSlice("exclude-tags", nil, "comma-separated tags to exclude (OR semantics)")
	fs.String("grep", "", "only run scenarios whose full name matches this regexp")
}

func loadConfig(cmd *cobra.Command) (config.Config, *log.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: flagConfig, Flags: cmd.Flags()})
	if err != nil {
		return config.Config{}, nil, err
	}
	opts := logging.DefaultOptions()
	opts.Level = cfg.LogLevel
	return cfg, logging.New(opts), nil
}

// loadFixtures reads the configured fixtures, expanding variables from the
// process environment overlaid with the env files.
func loadFixtures(cfg config.Config) (*ir.Fixtures, error) {
	fileVars, err := vars.LoadJSONFiles(cfg.EnvFiles)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	p := parser.New().WithVars(vars.Merge(vars.FromEnviron(), fileVars))
	if cfg.Fixtures == "" {
		return p.Default()
	}
	return p.ParseFile(cfg.Fixtures)
}

func selectCases(cfg config.Config, fx *ir.Fixtures) ([]scenario.Case, error) {
	cases := scenario.Flatten(scenario.BlogApp(fx))
	cases = scenario.FilterTags(cases, cfg.IncludeTags, cfg.ExcludeTags)
	if cfg.Grep != "" {
		re, err := regexp.Compile(cfg.Grep)
		if err != nil {
			return nil, fmt.Errorf("grep: %w", err)
		}
		cases = scenario.FilterGrep(cases, re)
	}
	return cases, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
