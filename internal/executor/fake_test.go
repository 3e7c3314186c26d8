package executor_test

import (
	"context"
	"sync"

	"github.com/playwright-community/playwright-go"

	"blog-e2e/internal/contract"
	"blog-e2e/internal/executor"
	"blog-e2e/internal/ir"
	"blog-e2e/internal/scenario"
)

// fakeSession stands in for a browser session. Scenario bodies used with it
// must not touch the page.
type fakeSession struct {
	backend    string
	violations []contract.Violation

	mu          sync.Mutex
	closed      int
	screenshots []string
}

func (s *fakeSession) Page() playwright.Page                   { return nil }
func (s *fakeSession) Expect() playwright.PlaywrightAssertions { return nil }
func (s *fakeSession) CheckTraffic(context.Context, *contract.Recorder, string) []contract.Violation {
	return s.violations
}
func (s *fakeSession) Screenshot(path string) error {
	s.mu.Lock()
	s.screenshots = append(s.screenshots, path)
	s.mu.Unlock()
	return nil
}
func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

type fakeBrowser struct {
	mu         sync.Mutex
	sessions   []*fakeSession
	violations []contract.Violation
	err        error
}

func (b *fakeBrowser) factory(_ context.Context, baseURL string) (executor.Session, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := &fakeSession{backend: baseURL, violations: b.violations}
	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

type fakeSeeder struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeSeeder) factory(baseURL, name string) scenario.Seeder {
	return seederFunc(func(context.Context, []ir.User) error {
		s.mu.Lock()
		s.calls = append(s.calls, baseURL+"|"+name)
		s.mu.Unlock()
		return nil
	})
}

type seederFunc func(context.Context, []ir.User) error

func (f seederFunc) Seed(ctx context.Context, users []ir.User) error { return f(ctx, users) }

func fixtures() *ir.Fixtures {
	return &ir.Fixtures{
		Users: []ir.User{
			{Name: "Matti Luukkainen", Username: "mluukkai", Password: "salainen"},
			{Name: "Testaus", Username: "testi", Password: "hiiri"},
		},
	}
}

func pass(context.Context, *scenario.Env) error { return nil }
