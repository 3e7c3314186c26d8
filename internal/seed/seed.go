// Package seed talks to the blog app's test-only endpoints to reset state and
// create accounts before each scenario.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"blog-e2e/internal/contract"
	"blog-e2e/internal/ir"
	"blog-e2e/internal/logging"
)

const (
	ResetPath = "/api/testing/reset"
	UsersPath = "/api/users"
)

// Client resets and seeds one backend. Response statuses are not asserted:
// a non-2xx reply is logged and, when a recorder is attached, validated
// against the API contract. Only transport failures are returned as errors.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	log        *log.Logger
	recorder   *contract.Recorder
	scenario   string
	found      *violationLog
}

type violationLog struct {
	mu   sync.Mutex
	list []contract.Violation
}

func New(baseURL string) *Client {
	tr := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		httpClient: &http.Client{Transport: tr},
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    10 * time.Second,
		log:        logging.Discard(),
	}
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client { c.httpClient = hc; return c }
func (c *Client) WithLogger(l *log.Logger) *Client         { c.log = l; return c }
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithContract validates every response against the blog API contract.
func (c *Client) WithContract(r *contract.Recorder) *Client { c.recorder = r; return c }

// ForScenario returns a copy whose contract violations are labelled with name
// and kept for Violations.
func (c *Client) ForScenario(name string) *Client {
	cp := *c
	cp.scenario = name
	cp.found = &violationLog{}
	return &cp
}

// Violations returns the contract violations seen by a ForScenario client.
func (c *Client) Violations() []contract.Violation {
	if c.found == nil {
		return nil
	}
	c.found.mu.Lock()
	defer c.found.mu.Unlock()
	return append([]contract.Violation(nil), c.found.list...)
}

func (c *Client) BaseURL() string { return c.baseURL }

// Reset clears all server-side state.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.post(ctx, ResetPath, nil)
	return err
}

// CreateUser registers u.
func (c *Client) CreateUser(ctx context.Context, u ir.User) error {
	_, err := c.post(ctx, UsersPath, map[string]string{
		"name":     u.Name,
		"username": u.Username,
		"password": u.Password,
	})
	return err
}

// Seed resets the backend and creates users in order.
func (c *Client) Seed(ctx context.Context, users []ir.User) error {
	if err := c.Reset(ctx); err != nil {
		return err
	}
	for _, u := range users {
		if err := c.CreateUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("json marshal body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, body)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		c.log.Warn("seeding request not accepted", "path", path, "status", resp.StatusCode, "body", limitBody(data, 256))
	} else {
		c.log.Debug("seeded", "path", path, "status", resp.StatusCode)
	}

	if c.recorder != nil {
		err := c.recorder.Check(ctx, c.scenario, contract.Exchange{
			Method: http.MethodPost,
			URL:    url,
			Status: resp.StatusCode,
			Header: resp.Header,
			Body:   data,
		})
		if err != nil {
			c.log.Warn("contract violation", "path", path, "err", err)
			if c.found != nil {
				c.found.mu.Lock()
				c.found.list = append(c.found.list, contract.Violation{
					Scenario: c.scenario,
					Method:   http.MethodPost,
					URL:      url,
					Status:   resp.StatusCode,
					Error:    err.Error(),
				})
				c.found.mu.Unlock()
			}
		}
	}
	return resp.StatusCode, nil
}

func limitBody(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...[truncated]"
}
