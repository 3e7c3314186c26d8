package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"blog-e2e/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "blog-e2e.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.StringSlice("base-url", nil, "")
	fs.Int("parallel", 1, "")
	fs.String("browser", "chromium", "")
	fs.Duration("expect-timeout", 5*time.Second, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
base_urls: [http://file:1/]
parallel: 2
browser: firefox
expect_timeout: 7s
reports:
  html: false
`)
	t.Setenv("BLOG_E2E_PARALLEL", "3")
	t.Setenv("BLOG_E2E_BROWSER", "webkit")

	fs := flags()
	require.NoError(t, fs.Parse([]string{"--parallel=4"}))

	cfg, err := config.Load(config.LoadOptions{ConfigPath: path, Flags: fs})
	require.NoError(t, err)

	if got, want := cfg.Parallel, 4; got != want { // flag beats env and file
		t.Fatalf("parallel = %d, want %d", got, want)
	}
	if got, want := cfg.Browser, "webkit"; got != want { // env beats file
		t.Fatalf("browser = %q, want %q", got, want)
	}
	if got, want := cfg.ExpectTimeout, 7*time.Second; got != want { // file beats default
		t.Fatalf("expect_timeout = %v, want %v", got, want)
	}
	if cfg.Reports.HTML || !cfg.Reports.JSON {
		t.Fatalf("reports = %+v, want html off and json on", cfg.Reports)
	}
	if diff := cmp.Diff([]string{"http://file:1"}, cfg.BaseURLs); diff != "" {
		t.Fatalf("base urls mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_BaseURLListFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	if config.BaseURLsEnv != "BLOG_E2E_BASE_URLS" {
		t.Fatalf("BaseURLsEnv = %q", config.BaseURLsEnv)
	}
	t.Setenv(config.BaseURLsEnv, "http://a:1, http://b:2/,http://a:1")

	cfg, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"http://a:1", "http://b:2"}, cfg.BaseURLs); diff != "" {
		t.Fatalf("base urls mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	bad := []func(*config.Config){
		func(c *config.Config) { c.BaseURLs = nil },
		func(c *config.Config) { c.BaseURLs = []string{"localhost"} },
		func(c *config.Config) { c.Browser = "ie" },
		func(c *config.Config) { c.Parallel = 0 },
		func(c *config.Config) { c.ExpectTimeout = 0 },
		func(c *config.Config) { c.CoverageMin = 101 },
	}
	for i, mutate := range bad {
		cfg := config.Default()
		mutate(&cfg)
		if err := config.Validate(cfg); !errors.Is(err, config.ErrInvalid) {
			t.Errorf("case %d: want ErrInvalid, got %v", i, err)
		}
	}
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
