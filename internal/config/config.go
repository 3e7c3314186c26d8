// Package config resolves runner settings with the precedence
// defaults < config file < environment (BLOG_E2E_*) < command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid config")

const EnvPrefix = "BLOG_E2E"

// BaseURLsEnv overrides base_urls for the CLI and the Ginkgo suite alike.
const BaseURLsEnv = EnvPrefix + "_BASE_URLS"

type Reports struct {
	JSON  bool `mapstructure:"json"`
	JUnit bool `mapstructure:"junit"`
	HTML  bool `mapstructure:"html"`
}

type Config struct {
	// BaseURLs lists independent deployments of the app; each one is
	// leased to a single scenario at a time.
	BaseURLs []string `mapstructure:"base_urls"`

	Browser         string        `mapstructure:"browser"`
	Headless        bool          `mapstructure:"headless"`
	SlowMo          time.Duration `mapstructure:"slow_mo"`
	ExpectTimeout   time.Duration `mapstructure:"expect_timeout"`
	ActionTimeout   time.Duration `mapstructure:"action_timeout"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout"`

	Fixtures string   `mapstructure:"fixtures"`
	EnvFiles []string `mapstructure:"env_files"`

	OutDir      string  `mapstructure:"out"`
	Reports     Reports `mapstructure:"reports"`
	Screenshots bool    `mapstructure:"screenshots"`

	Contract       bool    `mapstructure:"contract"`
	ContractStrict bool    `mapstructure:"contract_strict"`
	CoverageMin    float64 `mapstructure:"coverage_min"`

	Parallel    int      `mapstructure:"parallel"`
	FailFast    bool     `mapstructure:"fail_fast"`
	IncludeTags []string `mapstructure:"include_tags"`
	ExcludeTags []string `mapstructure:"exclude_tags"`
	Grep        string   `mapstructure:"grep"`
	Verbose     bool     `mapstructure:"verbose"`

	LogLevel string `mapstructure:"log_level"`
}

func Default() Config {
	return Config{
		BaseURLs:        []string{"http://localhost:5173"},
		Browser:         "chromium",
		Headless:        true,
		ExpectTimeout:   5 * time.Second,
		ActionTimeout:   10 * time.Second,
		ScenarioTimeout: 30 * time.Second,
		OutDir:          "reports",
		Reports:         Reports{JSON: true, JUnit: true, HTML: true},
		Screenshots:     true,
		Contract:        true,
		CoverageMin:     -1,
		Parallel:        1,
		LogLevel:        "info",
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"base-url":         "base_urls",
	"browser":          "browser",
	"headless":         "headless",
	"slow-mo":          "slow_mo",
	"expect-timeout":   "expect_timeout",
	"action-timeout":   "action_timeout",
	"scenario-timeout": "scenario_timeout",
	"fixtures":         "fixtures",
	"env":              "env_files",
	"out":              "out",
	"json":             "reports.json",
	"junit":            "reports.junit",
	"html":             "reports.html",
	"screenshots":      "screenshots",
	"contract":         "contract",
	"contract-strict":  "contract_strict",
	"coverage-min":     "coverage_min",
	"parallel":         "parallel",
	"fail-fast":        "fail_fast",
	"include-tags":     "include_tags",
	"exclude-tags":     "exclude_tags",
	"grep":             "grep",
	"verbose":          "verbose",
	"log-level":        "log_level",
}

type LoadOptions struct {
	// ConfigPath is an explicit config file. When empty, blog-e2e.{yaml,json,toml}
	// in the working directory is used if present.
	ConfigPath string
	// Flags are bound by name; only flags the user changed override lower layers.
	Flags *pflag.FlagSet
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigPath, err)
		}
	} else {
		v.SetConfigName("blog-e2e")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.BaseURLs = normalizeURLs(cfg.BaseURLs)
	cfg.IncludeTags = splitCSV(cfg.IncludeTags)
	cfg.ExcludeTags = splitCSV(cfg.ExcludeTags)
	cfg.EnvFiles = splitCSV(cfg.EnvFiles)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("base_urls", def.BaseURLs)
	v.SetDefault("browser", def.Browser)
	v.SetDefault("headless", def.Headless)
	v.SetDefault("slow_mo", def.SlowMo)
	v.SetDefault("expect_timeout", def.ExpectTimeout)
	v.SetDefault("action_timeout", def.ActionTimeout)
	v.SetDefault("scenario_timeout", def.ScenarioTimeout)
	v.SetDefault("fixtures", def.Fixtures)
	v.SetDefault("env_files", def.EnvFiles)
	v.SetDefault("out", def.OutDir)
	v.SetDefault("reports.json", def.Reports.JSON)
	v.SetDefault("reports.junit", def.Reports.JUnit)
	v.SetDefault("reports.html", def.Reports.HTML)
	v.SetDefault("screenshots", def.Screenshots)
	v.SetDefault("contract", def.Contract)
	v.SetDefault("contract_strict", def.ContractStrict)
	v.SetDefault("coverage_min", def.CoverageMin)
	v.SetDefault("parallel", def.Parallel)
	v.SetDefault("fail_fast", def.FailFast)
	v.SetDefault("include_tags", def.IncludeTags)
	v.SetDefault("exclude_tags", def.ExcludeTags)
	v.SetDefault("grep", def.Grep)
	v.SetDefault("verbose", def.Verbose)
	v.SetDefault("log_level", def.LogLevel)
}

func Validate(cfg Config) error {
	if len(cfg.BaseURLs) == 0 {
		return fmt.Errorf("%w: at least one base url is required", ErrInvalid)
	}
	for _, raw := range cfg.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: base url %q must be absolute", ErrInvalid, raw)
		}
	}
	switch cfg.Browser {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("%w: browser %q (want chromium, firefox or webkit)", ErrInvalid, cfg.Browser)
	}
	if cfg.Parallel < 1 {
		return fmt.Errorf("%w: parallel must be >= 1", ErrInvalid)
	}
	if cfg.ExpectTimeout <= 0 || cfg.ActionTimeout <= 0 || cfg.ScenarioTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if cfg.CoverageMin > 100 {
		return fmt.Errorf("%w: coverage_min must be <= 100", ErrInvalid)
	}
	return nil
}

func normalizeURLs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, u := range splitCSV(in) {
		u = strings.TrimRight(u, "/")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// splitCSV flattens entries that still carry commas (a single env var or
// flag value such as "a,b") and drops blanks.
func splitCSV(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
