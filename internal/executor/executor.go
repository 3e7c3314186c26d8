package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/errgroup"

	"blog-e2e/internal/contract"
	"blog-e2e/internal/ir"
	"blog-e2e/internal/logging"
	"blog-e2e/internal/scenario"
	"blog-e2e/internal/seed"
)

var (
	ErrNoBackends      = errors.New("no backends configured")
	ErrScenarioTimeout = errors.New("scenario timed out")
)

// ---- Results model ----

type SuiteResult struct {
	RunID      string
	Passed     bool
	Scenarios  []ScenarioResult
	Violations []contract.Violation `json:",omitempty"`
	DurationMs float64
}

type ScenarioResult struct {
	Name       string
	Group      string
	Tags       []string `json:",omitempty"`
	Passed     bool
	Backend    string
	Steps      []StepResult
	Screenshot string               `json:",omitempty"`
	Violations []contract.Violation `json:",omitempty"`
	DurationMs float64
}

const (
	KindHook     = "hook"
	KindScenario = "scenario"
	KindContract = "contract"
)

type StepResult struct {
	Name       string
	Kind       string
	Passed     bool
	Skipped    bool     `json:",omitempty"`
	Errors     []string `json:",omitempty"`
	DurationMs float64
}

// ---- Sessions ----

// Session is one isolated browser context as seen by the runner.
type Session interface {
	Page() playwright.Page
	Expect() playwright.PlaywrightAssertions
	CheckTraffic(ctx context.Context, rec *contract.Recorder, scenario string) []contract.Violation
	Screenshot(path string) error
	Close() error
}

// SessionFactory opens a session against baseURL. Implementations must tear
// the session down once ctx is done.
type SessionFactory func(ctx context.Context, baseURL string) (Session, error)

// SeederFactory returns the seeder used by one scenario on one backend.
type SeederFactory func(baseURL, scenario string) scenario.Seeder

// ViolationSource is implemented by seeders that validate their own traffic
// against the contract, such as seed.Client.
type ViolationSource interface {
	Violations() []contract.Violation
}

// ---- Runner ----

type Runner struct {
	sessions SessionFactory
	seeders  SeederFactory
	fixtures *ir.Fixtures
	backends []string

	recorder *contract.Recorder
	strict   bool

	log           *log.Logger
	parallel      int
	failFast      bool
	timeout       time.Duration
	screenshotDir string
}

func New(sessions SessionFactory, fx *ir.Fixtures, backends ...string) *Runner {
	return &Runner{
		sessions: sessions,
		fixtures: fx,
		backends: backends,
		log:      logging.Discard(),
		parallel: 1,
		timeout:  30 * time.Second,
	}
}

func (r *Runner) WithSeeders(f SeederFactory) *Runner { r.seeders = f; return r }
func (r *Runner) WithLogger(l *log.Logger) *Runner    { r.log = l; return r }
func (r *Runner) WithParallel(n int) *Runner {
	if n < 1 {
		n = 1
	}
	r.parallel = n
	return r
}
func (r *Runner) WithFailFast(b bool) *Runner { r.failFast = b; return r }
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithScreenshots saves a page screenshot into dir for every failing scenario.
func (r *Runner) WithScreenshots(dir string) *Runner { r.screenshotDir = dir; return r }

// WithContract validates seeding and page API traffic through rec. With
// strict set a violation fails the scenario that produced it.
func (r *Runner) WithContract(rec *contract.Recorder, strict bool) *Runner {
	r.recorder = rec
	r.strict = strict
	return r
}

// Parallelism is the number of scenarios that actually run at once.
func (r *Runner) Parallelism() int {
	n := r.parallel
	if r.failFast {
		n = 1
	}
	if n > len(r.backends) {
		n = len(r.backends)
	}
	return n
}

// ---- Suite execution ----

// Run executes cases and returns results in the order of cases.
func (r *Runner) Run(ctx context.Context, cases []scenario.Case) (*SuiteResult, error) {
	if len(r.backends) == 0 {
		return nil, ErrNoBackends
	}
	if r.sessions == nil {
		return nil, errors.New("no session factory")
	}

	start := time.Now()
	res := &SuiteResult{RunID: uuid.NewString(), Passed: true, Scenarios: make([]ScenarioResult, len(cases))}
	seeders := r.seederFactory()

	parallel := r.Parallelism()
	if !r.failFast && r.parallel > parallel {
		r.log.Warn("parallelism capped by backend count", "requested", r.parallel, "backends", len(r.backends))
	}
	r.log.Info("run started", "id", res.RunID, "cases", len(cases), "parallel", parallel, "backends", len(r.backends))

	pool := make(chan string, len(r.backends))
	for _, b := range r.backends {
		pool <- b
	}

	if parallel == 1 {
		for i, c := range cases {
			b := <-pool
			sc := r.runCase(ctx, c, b, seeders)
			pool <- b
			res.Scenarios[i] = sc
			if !sc.Passed {
				res.Passed = false
				if r.failFast {
					res.Scenarios = res.Scenarios[:i+1]
					break
				}
			}
		}
		return r.finish(res, start), nil
	}

	// Workers never return errors so one failing scenario does not cancel
	// the others.
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, c := range cases {
		g.Go(func() error {
			b := <-pool
			defer func() { pool <- b }()
			res.Scenarios[i] = r.runCase(ctx, c, b, seeders)
			return nil
		})
	}
	_ = g.Wait()

	for _, sc := range res.Scenarios {
		if !sc.Passed {
			res.Passed = false
		}
	}
	return r.finish(res, start), nil
}

func (r *Runner) finish(res *SuiteResult, start time.Time) *SuiteResult {
	if r.recorder != nil {
		res.Violations = r.recorder.Violations()
	}
	res.DurationMs = float64(time.Since(start).Milliseconds())
	r.log.Info("run finished", "id", res.RunID, "passed", res.Passed, "dur", time.Since(start).Round(time.Millisecond))
	return res
}

func (r *Runner) seederFactory() SeederFactory {
	if r.seeders != nil {
		return r.seeders
	}
	clients := make(map[string]*seed.Client, len(r.backends))
	for _, b := range r.backends {
		c := seed.New(b).WithLogger(r.log.WithPrefix("seed"))
		if r.recorder != nil {
			c = c.WithContract(r.recorder)
		}
		clients[b] = c
	}
	return func(baseURL, name string) scenario.Seeder {
		return clients[baseURL].ForScenario(name)
	}
}

type step struct {
	name string
	kind string
	run  scenario.Func
}

func (r *Runner) runCase(ctx context.Context, c scenario.Case, backend string, seeders SeederFactory) ScenarioResult {
	name := c.FullName()
	start := time.Now()
	sr := ScenarioResult{
		Name:    name,
		Group:   strings.Join(c.Path, " › "),
		Tags:    c.Tags,
		Passed:  true,
		Backend: backend,
	}
	lg := r.log.With("scenario", name, "backend", backend)

	steps := make([]step, 0, len(c.Hooks)+1)
	for _, h := range c.Hooks {
		steps = append(steps, step{name: h.Name, kind: KindHook, run: h.Run})
	}
	steps = append(steps, step{name: c.Name, kind: KindScenario, run: c.Run})

	sctx, cancel := context.WithTimeoutCause(ctx, r.timeout, ErrScenarioTimeout)
	defer cancel()

	sess, err := r.sessions(sctx, backend)
	if err != nil {
		sr.Passed = false
		for i, st := range steps {
			res := StepResult{Name: st.name, Kind: st.kind, Skipped: i > 0}
			if i == 0 {
				res.Errors = []string{fmt.Sprintf("open browser session: %v", err)}
			}
			sr.Steps = append(sr.Steps, res)
		}
		sr.DurationMs = float64(time.Since(start).Milliseconds())
		lg.Error("session failed", "err", err)
		return sr
	}
	defer func() {
		if err := sess.Close(); err != nil {
			lg.Debug("close session", "err", err)
		}
	}()

	env := &scenario.Env{
		Page:     sess.Page(),
		Expect:   sess.Expect(),
		Seeder:   seeders(backend, name),
		Fixtures: r.fixtures,
		Log:      lg,
	}

	for _, st := range steps {
		if !sr.Passed {
			sr.Steps = append(sr.Steps, StepResult{Name: st.name, Kind: st.kind, Skipped: true})
			continue
		}
		t0 := time.Now()
		err := st.run(sctx, env)
		if err == nil && sctx.Err() != nil {
			err = sctx.Err()
		}
		if err != nil && errors.Is(context.Cause(sctx), ErrScenarioTimeout) && !errors.Is(err, ErrScenarioTimeout) {
			err = fmt.Errorf("%w after %s: %v", ErrScenarioTimeout, r.timeout, err)
		}
		res := StepResult{
			Name:       st.name,
			Kind:       st.kind,
			Passed:     err == nil,
			DurationMs: float64(time.Since(t0).Milliseconds()),
		}
		if err != nil {
			res.Errors = []string{err.Error()}
			sr.Passed = false
			lg.Warn("step failed", "step", st.name, "err", err)
		}
		sr.Steps = append(sr.Steps, res)
	}

	if !sr.Passed && r.screenshotDir != "" && sctx.Err() == nil {
		path := filepath.Join(r.screenshotDir, Slug(name)+".png")
		if err := sess.Screenshot(path); err != nil {
			lg.Warn("screenshot failed", "err", err)
		} else {
			sr.Screenshot = path
		}
	}

	if r.recorder != nil {
		if vs, ok := env.Seeder.(ViolationSource); ok {
			sr.Violations = append(sr.Violations, vs.Violations()...)
		}
		sr.Violations = append(sr.Violations, sess.CheckTraffic(ctx, r.recorder, name)...)
		if len(sr.Violations) > 0 {
			lg.Warn("contract violations", "count", len(sr.Violations))
			if r.strict {
				res := StepResult{Name: "api contract", Kind: KindContract}
				for _, v := range sr.Violations {
					res.Errors = append(res.Errors, fmt.Sprintf("%s %s -> %d: %s", v.Method, v.URL, v.Status, v.Error))
				}
				sr.Steps = append(sr.Steps, res)
				sr.Passed = false
			}
		}
	}

	sr.DurationMs = float64(time.Since(start).Milliseconds())
	if sr.Passed {
		lg.Info("passed", "dur", time.Since(start).Round(time.Millisecond))
	} else {
		lg.Error("failed", "dur", time.Since(start).Round(time.Millisecond))
	}
	return sr
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a case name into a file name.
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > 120 {
		s = strings.TrimRight(s[:120], "-")
	}
	if s == "" {
		s = "scenario"
	}
	return s
}
