package executor_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"blog-e2e/internal/contract"
	"blog-e2e/internal/executor"
	"blog-e2e/internal/scenario"
)

func TestRun_HooksThenBodyAndSeederPerScenario(t *testing.T) {
	var order []string
	record := func(name string) scenario.Func {
		return func(ctx context.Context, env *scenario.Env) error {
			if name == "reset" {
				if err := env.Seeder.Seed(ctx, env.Fixtures.Users); err != nil {
					return err
				}
			}
			order = append(order, name)
			return nil
		}
	}
	root := &scenario.Group{
		Name:       "Blog app",
		BeforeEach: []scenario.Hook{{Name: "reset", Run: record("reset")}},
		Scenarios:  []scenario.Scenario{{Name: "front page", Tags: []string{"smoke"}, Run: record("front page")}},
		Groups: []*scenario.Group{{
			Name:       "when logged in",
			BeforeEach: []scenario.Hook{{Name: "login", Run: record("login")}},
			Scenarios:  []scenario.Scenario{{Name: "create", Run: record("create")}},
		}},
	}

	fb := &fakeBrowser{}
	fs := &fakeSeeder{}
	res, err := executor.New(fb.factory, fixtures(), "http://a").WithSeeders(fs.factory).
		Run(context.Background(), scenario.Flatten(root))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Passed || res.RunID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	if diff := cmp.Diff([]string{"reset", "front page", "reset", "login", "create"}, order); diff != "" {
		t.Fatalf("execution order (-want +got):\n%s", diff)
	}
	wantSeeds := []string{
		"http://a|Blog app › front page",
		"http://a|Blog app › when logged in › create",
	}
	if diff := cmp.Diff(wantSeeds, fs.calls); diff != "" {
		t.Fatalf("seed calls (-want +got):\n%s", diff)
	}

	sc := res.Scenarios[1]
	if sc.Group != "Blog app › when logged in" || sc.Backend != "http://a" {
		t.Fatalf("scenario meta: %+v", sc)
	}
	var kinds []string
	for _, st := range sc.Steps {
		kinds = append(kinds, st.Kind+":"+st.Name)
	}
	if diff := cmp.Diff([]string{"hook:reset", "hook:login", "scenario:create"}, kinds); diff != "" {
		t.Fatalf("steps (-want +got):\n%s", diff)
	}

	if len(fb.sessions) != 2 {
		t.Fatalf("sessions = %d, want one per scenario", len(fb.sessions))
	}
	for _, s := range fb.sessions {
		if s.closed != 1 {
			t.Fatalf("session closed %d times, want 1", s.closed)
		}
	}
}

func TestRun_FailedHookSkipsRestAndTakesScreenshot(t *testing.T) {
	dir := t.TempDir()
	bodyRan := false
	cases := scenario.Flatten(&scenario.Group{
		Name:       "Blog app",
		BeforeEach: []scenario.Hook{{Name: "login", Run: func(context.Context, *scenario.Env) error { return errors.New(`click "log in": timeout`) }}},
		Scenarios: []scenario.Scenario{{Name: "create", Run: func(context.Context, *scenario.Env) error {
			bodyRan = true
			return nil
		}}},
	})

	fb := &fakeBrowser{}
	res, err := executor.New(fb.factory, fixtures(), "http://a").
		WithSeeders((&fakeSeeder{}).factory).
		WithScreenshots(dir).
		Run(context.Background(), cases)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed || bodyRan {
		t.Fatalf("passed=%v bodyRan=%v", res.Passed, bodyRan)
	}
	steps := res.Scenarios[0].Steps
	if len(steps) != 2 || steps[0].Passed || !steps[1].Skipped {
		t.Fatalf("steps = %+v", steps)
	}
	if !strings.Contains(steps[0].Errors[0], `click "log in"`) {
		t.Fatalf("error = %q", steps[0].Errors[0])
	}

	want := filepath.Join(dir, "blog-app-create.png")
	if res.Scenarios[0].Screenshot != want {
		t.Fatalf("screenshot = %q, want %q", res.Scenarios[0].Screenshot, want)
	}
	if diff := cmp.Diff([]string{want}, fb.sessions[0].screenshots); diff != "" {
		t.Fatalf("screenshots (-want +got):\n%s", diff)
	}
}

func TestRun_FailFastStopsAfterFirstFailure(t *testing.T) {
	fail := func(context.Context, *scenario.Env) error { return errors.New("boom") }
	cases := scenario.Flatten(&scenario.Group{
		Name: "g",
		Scenarios: []scenario.Scenario{
			{Name: "one", Run: pass},
			{Name: "two", Run: fail},
			{Name: "three", Run: pass},
		},
	})

	fb := &fakeBrowser{}
	r := executor.New(fb.factory, fixtures(), "http://a", "http://b").
		WithSeeders((&fakeSeeder{}).factory).
		WithParallel(4).
		WithFailFast(true)
	if got := r.Parallelism(); got != 1 {
		t.Fatalf("Parallelism = %d, want 1 under fail-fast", got)
	}
	res, err := r.Run(context.Background(), cases)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Fatal("suite should fail")
	}
	if len(res.Scenarios) != 2 {
		t.Fatalf("ran %d scenarios, want 2", len(res.Scenarios))
	}
	if res.Scenarios[1].Name != "g › two" {
		t.Fatalf("last = %q", res.Scenarios[1].Name)
	}
}

func TestRun_ScenarioTimeout(t *testing.T) {
	cases := scenario.Flatten(&scenario.Group{
		Name: "g",
		Scenarios: []scenario.Scenario{{Name: "hangs", Run: func(ctx context.Context, _ *scenario.Env) error {
			<-ctx.Done()
			return ctx.Err()
		}}},
	})

	fb := &fakeBrowser{}
	start := time.Now()
	res, err := executor.New(fb.factory, fixtures(), "http://a").
		WithSeeders((&fakeSeeder{}).factory).
		WithTimeout(50 * time.Millisecond).
		WithScreenshots(t.TempDir()).
		Run(context.Background(), cases)
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not enforced")
	}
	sc := res.Scenarios[0]
	if sc.Passed {
		t.Fatal("timed out scenario passed")
	}
	if !strings.Contains(sc.Steps[0].Errors[0], executor.ErrScenarioTimeout.Error()) {
		t.Fatalf("error = %q", sc.Steps[0].Errors[0])
	}
	if sc.Screenshot != "" {
		t.Fatal("no screenshot expected once the context is gone")
	}
}

func TestRun_SessionErrorFailsScenario(t *testing.T) {
	cases := scenario.Flatten(&scenario.Group{
		Name:       "g",
		BeforeEach: []scenario.Hook{{Name: "seed", Run: pass}},
		Scenarios:  []scenario.Scenario{{Name: "s", Run: pass}},
	})
	fb := &fakeBrowser{err: errors.New("browser crashed")}
	res, err := executor.New(fb.factory, fixtures(), "http://a").WithSeeders((&fakeSeeder{}).factory).
		Run(context.Background(), cases)
	if err != nil {
		t.Fatal(err)
	}
	steps := res.Scenarios[0].Steps
	if res.Passed || len(steps) != 2 || !steps[1].Skipped {
		t.Fatalf("result = %+v", res.Scenarios[0])
	}
	if !strings.Contains(steps[0].Errors[0], "browser crashed") {
		t.Fatalf("error = %q", steps[0].Errors[0])
	}
}

func TestRun_NoBackends(t *testing.T) {
	_, err := executor.New((&fakeBrowser{}).factory, fixtures()).Run(context.Background(), nil)
	if !errors.Is(err, executor.ErrNoBackends) {
		t.Fatalf("err = %v, want ErrNoBackends", err)
	}
}

func TestRun_ContractViolations(t *testing.T) {
	v, err := contract.BlogAPI()
	if err != nil {
		t.Fatal(err)
	}
	cases := scenario.Flatten(&scenario.Group{Name: "g", Scenarios: []scenario.Scenario{{Name: "s", Run: pass}}})
	violation := contract.Violation{Scenario: "g › s", Method: "GET", URL: "http://a/api/blogs", Status: 500, Error: "status 500 not documented"}

	for _, strict := range []bool{false, true} {
		fb := &fakeBrowser{violations: []contract.Violation{violation}}
		res, err := executor.New(fb.factory, fixtures(), "http://a").
			WithSeeders((&fakeSeeder{}).factory).
			WithContract(contract.NewRecorder(v), strict).
			Run(context.Background(), cases)
		if err != nil {
			t.Fatal(err)
		}
		sc := res.Scenarios[0]
		if len(sc.Violations) != 1 {
			t.Fatalf("strict=%v: violations = %+v", strict, sc.Violations)
		}
		if sc.Passed == strict {
			t.Fatalf("strict=%v: passed = %v", strict, sc.Passed)
		}
		if strict {
			last := sc.Steps[len(sc.Steps)-1]
			if last.Kind != executor.KindContract || !strings.Contains(last.Errors[0], "500") {
				t.Fatalf("contract step = %+v", last)
			}
		}
	}
}

func TestRun_SeedingViolationsChargeTheScenario(t *testing.T) {
	v, err := contract.BlogAPI()
	if err != nil {
		t.Fatal(err)
	}
	// Every seeding call gets an undocumented 200 with an HTML body.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	seedHook := scenario.Hook{Name: "seed", Run: func(ctx context.Context, env *scenario.Env) error {
		return env.Seeder.Seed(ctx, env.Fixtures.Users)
	}}
	cases := scenario.Flatten(&scenario.Group{
		Name:       "Blog app",
		BeforeEach: []scenario.Hook{seedHook},
		Scenarios:  []scenario.Scenario{{Name: "front page can be opened", Run: pass}},
	})

	for _, strict := range []bool{false, true} {
		rec := contract.NewRecorder(v)
		fb := &fakeBrowser{}
		res, err := executor.New(fb.factory, fixtures(), srv.URL).
			WithContract(rec, strict).
			Run(context.Background(), cases)
		if err != nil {
			t.Fatal(err)
		}
		sc := res.Scenarios[0]

		// reset plus one request per fixture user
		if got := len(sc.Violations); got != 3 {
			t.Fatalf("strict=%v: scenario violations = %d, want 3: %+v", strict, got, sc.Violations)
		}
		for _, vi := range sc.Violations {
			if vi.Scenario != "Blog app › front page can be opened" || vi.Method != http.MethodPost {
				t.Fatalf("strict=%v: violation = %+v", strict, vi)
			}
		}
		if !strings.HasSuffix(sc.Violations[0].URL, "/api/testing/reset") {
			t.Fatalf("first violation should be the reset: %+v", sc.Violations[0])
		}
		if got := len(rec.Violations()); got != 3 {
			t.Fatalf("strict=%v: recorder violations = %d, want 3", strict, got)
		}
		if sc.Passed == strict || res.Passed == strict {
			t.Fatalf("strict=%v: scenario passed = %v, suite passed = %v", strict, sc.Passed, res.Passed)
		}
		if strict {
			last := sc.Steps[len(sc.Steps)-1]
			if last.Kind != executor.KindContract || len(last.Errors) != 3 {
				t.Fatalf("contract step = %+v", last)
			}
		}
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Blog app › when logged in › a new blog can be created": "blog-app-when-logged-in-a-new-blog-can-be-created",
		"  ":            "scenario",
		"Likes: 5 (ok)": "likes-5-ok",
	}
	for in, want := range cases {
		if got := executor.Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
