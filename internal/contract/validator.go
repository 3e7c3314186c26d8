package contract

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed blogapi.yaml
var blogAPI []byte

type Validator struct {
	doc    *openapi3.T
	router routers.Router
}

// BlogAPI returns a validator for the blog application's REST API.
func BlogAPI() (*Validator, error) { return LoadFromBytes(blogAPI) }

func LoadFromFile(path string) (*Validator, error) {
	loader := &openapi3.Loader{IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return build(doc)
}

func LoadFromBytes(b []byte) (*Validator, error) {
	loader := &openapi3.Loader{IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromData(b)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return build(doc)
}

func build(doc *openapi3.T) (*Validator, error) {
	// Strict: if the document is invalid, fail fast with a clear message.
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	r, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	return &Validator{doc: doc, router: r}, nil
}

func (v *Validator) Doc() *openapi3.T { return v.doc }

// ValidateResponse validates (method, url, status, headers, body) against the document.
// Returns (templatedPath, method) for coverage accounting; the route is
// returned even when validation fails so the operation still counts as exercised.
func (v *Validator) ValidateResponse(
	ctx context.Context,
	method string,
	rawURL string,
	status int,
	header map[string][]string,
	body []byte,
) (routePath string, routeMethod string, err error) {
	return v.validate(ctx, method, rawURL, status, header, body, true)
}

// ValidateResponseHead checks status, headers and content type of a response
// whose body could not be read.
func (v *Validator) ValidateResponseHead(
	ctx context.Context,
	method string,
	rawURL string,
	status int,
	header map[string][]string,
) (routePath string, routeMethod string, err error) {
	return v.validate(ctx, method, rawURL, status, header, nil, false)
}

func (v *Validator) validate(
	ctx context.Context,
	method string,
	rawURL string,
	status int,
	header map[string][]string,
	body []byte,
	withBody bool,
) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	hdr := http.Header(header)
	req := &http.Request{
		Method: method,
		URL:    u,
		Header: hdr,
	}

	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return "", "", fmt.Errorf("route not found: %w", err)
	}

	rvi := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{},
	}

	rsp := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: rvi,
		Status:                 status,
		Header:                 hdr,
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
			ExcludeResponseBody:   !withBody,
		},
	}

	if err := openapi3filter.ValidateResponse(ctx, rsp); err != nil {
		return route.Path, route.Method, err
	}
	if !withBody {
		if err := checkContentType(route.Operation, status, hdr); err != nil {
			return route.Path, route.Method, err
		}
	}
	return route.Path, route.Method, nil
}

// checkContentType is the part of body validation that needs only headers.
func checkContentType(op *openapi3.Operation, status int, hdr http.Header) error {
	if op == nil || op.Responses == nil {
		return nil
	}
	ref := op.Responses.Status(status)
	if ref == nil {
		ref = op.Responses.Default()
	}
	if ref == nil || ref.Value == nil || len(ref.Value.Content) == 0 {
		return nil
	}
	ct := hdr.Get("Content-Type")
	if ref.Value.Content.Get(ct) == nil {
		return fmt.Errorf("response header Content-Type has unexpected value: %q", ct)
	}
	return nil
}

// LoadFromURL fetches a published OpenAPI document over HTTP(S).
func LoadFromURL(ctx context.Context, rawURL string) (*Validator, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromURI(u)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return build(doc)
}
