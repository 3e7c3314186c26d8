//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"blog-e2e/internal/blogmock"
	"blog-e2e/internal/browser"
	"blog-e2e/internal/config"
	"blog-e2e/internal/contract"
	"blog-e2e/internal/executor"
	"blog-e2e/internal/ir"
	"blog-e2e/internal/logging"
	"blog-e2e/internal/parser"
	"blog-e2e/internal/scenario"
	"blog-e2e/internal/seed"
	"blog-e2e/internal/vars"
)

// Settings come from the same BLOG_E2E_* variables and blog-e2e.yaml as the
// CLI. The suite targets the first of BLOG_E2E_BASE_URLS when it is set and
// an in-process blogmock otherwise; BLOG_E2E_CONTRACT_STRICT=true fails specs
// whose seeding or page traffic breaks the contract.
var (
	fixtures *ir.Fixtures
	baseURL  string
	launcher *browser.Launcher
	recorder *contract.Recorder
	seeder   *seed.Client
	logger   *log.Logger
	outDir   string
	strict   bool

	mock *httptest.Server

	// per spec
	session *browser.Session
	env     *scenario.Env
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	fmt.Fprintf(GinkgoWriter, "Starting blog app browser suite\n")
	RunSpecs(t, "blog app e2e suite")
}

var _ = BeforeSuite(func() {
	cfg, err := config.Load(config.LoadOptions{})
	Expect(err).NotTo(HaveOccurred(), "load config")

	opts := logging.DefaultOptions()
	opts.Output = GinkgoWriter
	opts.Level = cfg.LogLevel
	logger = logging.New(opts)

	fileVars, err := vars.LoadJSONFiles(cfg.EnvFiles)
	Expect(err).NotTo(HaveOccurred(), "load env files")
	p := parser.New().WithVars(vars.Merge(vars.FromEnviron(), fileVars))
	if cfg.Fixtures != "" {
		fixtures, err = p.ParseFile(cfg.Fixtures)
	} else {
		fixtures, err = p.Default()
	}
	Expect(err).NotTo(HaveOccurred(), "load fixtures")

	if _, ok := os.LookupEnv(config.BaseURLsEnv); ok {
		baseURL = cfg.BaseURLs[0]
	} else {
		mock = httptest.NewServer(blogmock.New(blogmock.NewStore(), logger.WithPrefix("blogmock")).Handler())
		baseURL = mock.URL
	}
	outDir = cfg.OutDir
	strict = cfg.ContractStrict

	v, err := contract.BlogAPI()
	Expect(err).NotTo(HaveOccurred())
	recorder = contract.NewRecorder(v)
	seeder = seed.New(baseURL).WithLogger(logger.WithPrefix("seed")).WithContract(recorder)

	bo := browser.Options{
		Browser:       cfg.Browser,
		Headless:      cfg.Headless,
		SlowMo:        cfg.SlowMo,
		ActionTimeout: cfg.ActionTimeout,
		ExpectTimeout: cfg.ExpectTimeout,
		CaptureAPI:    true,
	}
	launcher, err = browser.Launch(bo, logger.WithPrefix("browser"))
	Expect(err).NotTo(HaveOccurred(), "launch browser")
})

var _ = AfterSuite(func() {
	if launcher != nil {
		Expect(launcher.Close()).To(Succeed())
	}
	if mock != nil {
		mock.Close()
	}
	if recorder != nil {
		for _, v := range recorder.Violations() {
			fmt.Fprintf(GinkgoWriter, "contract: [%s] %s %s -> %d: %s\n", v.Scenario, v.Method, v.URL, v.Status, v.Error)
		}
	}
})

// Every spec gets its own browser context.
var _ = BeforeEach(func() {
	var err error
	session, err = launcher.NewSession(context.Background(), baseURL)
	Expect(err).NotTo(HaveOccurred(), "open browser session")
	DeferCleanup(session.Close)

	name := CurrentSpecReport().FullText()
	env = &scenario.Env{
		Page:     session.Page(),
		Expect:   session.Expect(),
		Seeder:   seeder.ForScenario(name),
		Fixtures: fixtures,
		Log:      logger.With("scenario", name),
	}
})

var _ = AfterEach(func(ctx SpecContext) {
	name := CurrentSpecReport().FullText()
	if CurrentSpecReport().Failed() {
		path := filepath.Join(outDir, "screenshots", executor.Slug(name)+".png")
		if err := session.Screenshot(path); err == nil {
			AddReportEntry("screenshot", path)
		}
	}
	var vs []contract.Violation
	if src, ok := env.Seeder.(executor.ViolationSource); ok {
		vs = append(vs, src.Violations()...)
	}
	vs = append(vs, session.CheckTraffic(ctx, recorder, name)...)
	for _, v := range vs {
		AddReportEntry("contract violation", fmt.Sprintf("%s %s -> %d: %s", v.Method, v.URL, v.Status, v.Error))
	}
	if strict {
		Expect(vs).To(BeEmpty(), "seeding and page API traffic must match the contract")
	}
}, NodeTimeout(30*time.Second))
