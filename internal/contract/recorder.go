package contract

import (
	"context"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Exchange is one observed HTTP response together with the request line.
type Exchange struct {
	Method string
	URL    string
	Status int
	Header map[string][]string
	Body   []byte
	// BodyUnavailable marks a response whose body could not be read; only
	// its status, headers and content type are validated.
	BodyUnavailable bool
}

type Violation struct {
	Scenario string `json:"scenario,omitempty"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Status   int    `json:"status"`
	Error    string `json:"error"`
}

// Recorder validates exchanges and accumulates coverage and violations.
// It is shared by concurrently running scenarios.
type Recorder struct {
	v *Validator

	mu         sync.Mutex
	covered    map[string]map[string]bool // method -> pathTemplate -> true
	violations []Violation
}

func NewRecorder(v *Validator) *Recorder {
	return &Recorder{v: v, covered: map[string]map[string]bool{}}
}

func (r *Recorder) Doc() *openapi3.T { return r.v.Doc() }

// Check validates ex and records the operation as covered. scenario labels
// any violation for the report.
func (r *Recorder) Check(ctx context.Context, scenario string, ex Exchange) error {
	method := strings.ToUpper(ex.Method)
	var path, mth string
	var err error
	if ex.BodyUnavailable {
		path, mth, err = r.v.ValidateResponseHead(ctx, method, ex.URL, ex.Status, ex.Header)
	} else {
		path, mth, err = r.v.ValidateResponse(ctx, method, ex.URL, ex.Status, ex.Header, ex.Body)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if path != "" {
		if r.covered[mth] == nil {
			r.covered[mth] = map[string]bool{}
		}
		r.covered[mth][path] = true
	}
	if err != nil {
		r.violations = append(r.violations, Violation{
			Scenario: scenario,
			Method:   method,
			URL:      ex.URL,
			Status:   ex.Status,
			Error:    err.Error(),
		})
	}
	return err
}

// Covered returns a copy of the covered operation set.
func (r *Recorder) Covered() map[string]map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[string]bool, len(r.covered))
	for m, paths := range r.covered {
		cp := make(map[string]bool, len(paths))
		for p := range paths {
			cp[p] = true
		}
		out[m] = cp
	}
	return out
}

func (r *Recorder) Violations() []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Violation(nil), r.violations...)
}
