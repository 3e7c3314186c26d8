// Package browser owns the Playwright driver and hands out isolated
// sessions, one browser context and page per scenario.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/playwright-community/playwright-go"

	"blog-e2e/internal/contract"
	"blog-e2e/internal/logging"
)

const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

// APIPrefix selects which page traffic is captured for contract checks.
const APIPrefix = "/api/"

type Options struct {
	Browser       string
	Headless      bool
	SlowMo        time.Duration
	ActionTimeout time.Duration
	ExpectTimeout time.Duration
	// CaptureAPI records /api/ responses seen by the page.
	CaptureAPI bool
}

func DefaultOptions() Options {
	return Options{
		Browser:       Chromium,
		Headless:      true,
		ActionTimeout: 10 * time.Second,
		ExpectTimeout: 5 * time.Second,
	}
}

// Launcher is one running Playwright driver and browser.
type Launcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	log     *log.Logger
}

func Launch(opts Options, logger *log.Logger) (*Launcher, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	pw, err := playwright.Run(&playwright.RunOptions{Verbose: false})
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch strings.ToLower(opts.Browser) {
	case "", Chromium:
		bt = pw.Chromium
	case Firefox:
		bt = pw.Firefox
	case WebKit:
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("unknown browser %q", opts.Browser)
	}

	lo := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(opts.Headless)}
	if opts.SlowMo > 0 {
		lo.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	b, err := bt.Launch(lo)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", bt.Name(), err)
	}
	logger.Info("browser launched", "browser", bt.Name(), "version", b.Version(), "headless", opts.Headless)
	return &Launcher{pw: pw, browser: b, opts: opts, log: logger}, nil
}

// NewSession opens a fresh context rooted at baseURL. The context is closed
// as soon as ctx is done, which aborts any Playwright call in flight.
func (l *Launcher) NewSession(ctx context.Context, baseURL string) (*Session, error) {
	bctx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		BaseURL: playwright.String(baseURL),
	})
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	if l.opts.ActionTimeout > 0 {
		page.SetDefaultTimeout(float64(l.opts.ActionTimeout.Milliseconds()))
	}

	s := &Session{
		bctx:   bctx,
		page:   page,
		expect: playwright.NewPlaywrightAssertions(float64(l.opts.ExpectTimeout.Milliseconds())),
		log:    l.log,
	}
	if l.opts.CaptureAPI {
		page.OnResponse(s.capture)
	}
	s.stop = context.AfterFunc(ctx, func() { _ = bctx.Close() })
	return s, nil
}

func (l *Launcher) Close() error {
	var errs []string
	if err := l.browser.Close(); err != nil {
		errs = append(errs, "browser: "+err.Error())
	}
	if err := l.pw.Stop(); err != nil {
		errs = append(errs, "playwright: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close launcher: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Session is one isolated browser context with a single page.
type Session struct {
	bctx   playwright.BrowserContext
	page   playwright.Page
	expect playwright.PlaywrightAssertions
	log    *log.Logger
	stop   func() bool

	mu       sync.Mutex
	captured []*capturedResponse
	closed   bool
}

// observed is the part of playwright.Response read while recording traffic.
type observed interface {
	URL() string
	Status() int
	Headers() map[string]string
	Finished() error
	Body() ([]byte, error)
}

type capturedResponse struct {
	done chan struct{}
	ex   contract.Exchange
}

func (s *Session) Page() playwright.Page                   { return s.page }
func (s *Session) Expect() playwright.PlaywrightAssertions { return s.expect }

// capture records API responses. The body is read in the background as soon
// as the response finishes, since a later navigation discards it and the
// event callback must not block the driver.
func (s *Session) capture(r playwright.Response) {
	if !IsAPI(r.URL()) {
		return
	}
	s.track(r.Request().Method(), r)
}

func (s *Session) track(method string, r observed) {
	c := &capturedResponse{done: make(chan struct{})}
	s.mu.Lock()
	s.captured = append(s.captured, c)
	s.mu.Unlock()

	go func() {
		defer close(c.done)
		c.ex = contract.Exchange{
			Method: method,
			URL:    r.URL(),
			Status: r.Status(),
			Header: multiHeader(r.Headers()),
		}
		body, err := readBody(r)
		if err != nil {
			c.ex.BodyUnavailable = true
			s.log.Debug("response body unavailable", "url", c.ex.URL, "err", err)
			return
		}
		c.ex.Body = body
	}()
}

func readBody(r observed) ([]byte, error) {
	if err := r.Finished(); err != nil {
		return nil, fmt.Errorf("response not finished: %w", err)
	}
	return r.Body()
}

// IsAPI reports whether rawURL points below APIPrefix.
func IsAPI(rawURL string) bool {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			rest = rest[j:]
		} else {
			return false
		}
	}
	return strings.HasPrefix(rest, APIPrefix)
}

// CheckTraffic validates every captured response against rec and returns
// the violations found. It waits for pending body reads unless ctx ends
// first, in which case the unread responses are skipped.
func (s *Session) CheckTraffic(ctx context.Context, rec *contract.Recorder, scenario string) []contract.Violation {
	s.mu.Lock()
	captured := s.captured
	s.captured = nil
	s.mu.Unlock()

	var out []contract.Violation
	for i, c := range captured {
		select {
		case <-c.done:
		case <-ctx.Done():
			s.log.Debug("traffic check cut short", "skipped", len(captured)-i, "err", ctx.Err())
			return out
		}
		ex := c.ex
		if err := rec.Check(ctx, scenario, ex); err != nil {
			out = append(out, contract.Violation{
				Scenario: scenario,
				Method:   ex.Method,
				URL:      ex.URL,
				Status:   ex.Status,
				Error:    err.Error(),
			})
		}
	}
	return out
}

// multiHeader converts Playwright's lower-case header map into canonical
// http.Header keys so lookups such as Get("Content-Type") work.
func multiHeader(h map[string]string) map[string][]string {
	out := make(http.Header, len(h))
	for k, v := range h {
		out.Add(k, v)
	}
	return out
}

// Screenshot writes a full page PNG to path, creating parent directories.
func (s *Session) Screenshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
	return s.bctx.Close()
}
