package parser

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"blog-e2e/internal/ir"
	"blog-e2e/internal/vars"
)

var ErrValidation = errors.New("validation error")

//go:embed default.yaml
var defaultFixtures []byte

type Parser struct {
	vars map[string]string
}

func New() *Parser { return &Parser{} }

// WithVars sets the values used to expand ${KEY|default} in string fields.
func (p *Parser) WithVars(m map[string]string) *Parser { p.vars = m; return p }

// Default parses the fixtures compiled into the binary.
func (p *Parser) Default() (*ir.Fixtures, error) { return p.ParseBytes(defaultFixtures) }

func (p *Parser) ParseFile(path string) (*ir.Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return p.ParseBytes(b)
}

// ParseBytes parses YAML (or JSON) fixtures, expands variables and validates.
func (p *Parser) ParseBytes(b []byte) (*ir.Fixtures, error) {
	var fx ir.Fixtures

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true) // fail on unknown fields

	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := p.expand(&fx); err != nil {
		return nil, err
	}
	if err := validateFixtures(&fx); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (p *Parser) expand(fx *ir.Fixtures) error {
	var unresolved []string
	ex := func(s *string) {
		*s = vars.Interpolate(*s, p.vars)
		unresolved = append(unresolved, vars.FindUnresolved(*s)...)
	}
	for i := range fx.Users {
		u := &fx.Users[i]
		ex(&u.Name)
		ex(&u.Username)
		ex(&u.Password)
	}
	expandBlog := func(b *ir.Blog) {
		ex(&b.Title)
		ex(&b.Author)
		ex(&b.URL)
	}
	expandBlog(&fx.NewBlog)
	for i := range fx.Blogs {
		expandBlog(&fx.Blogs[i])
	}
	ex(&fx.Texts.Heading)
	ex(&fx.Texts.Footer)
	ex(&fx.Texts.WrongCredentials)
	ex(&fx.Texts.LoggedInSuffix)

	if len(unresolved) > 0 {
		return wrapValidation(fmt.Sprintf("unresolved variables: %s (define via --env or use ${VAR|default})",
			strings.Join(unresolved, ", ")))
	}
	return nil
}

// --- validation helpers ---

func validateFixtures(fx *ir.Fixtures) error {
	if len(fx.Users) < 2 {
		return wrapValidation("users must list at least two accounts")
	}
	seen := map[string]bool{}
	for i, u := range fx.Users {
		if err := validateUser(u, i); err != nil {
			return err
		}
		if seen[u.Username] {
			return wrapValidation(fmt.Sprintf("users[%d].username %q is duplicated", i, u.Username))
		}
		seen[u.Username] = true
	}
	if err := validateBlog(fx.NewBlog, "new_blog"); err != nil {
		return err
	}
	if len(fx.Blogs) == 0 {
		return wrapValidation("blogs must not be empty")
	}
	for i, b := range fx.Blogs {
		if err := validateBlog(b, fmt.Sprintf("blogs[%d]", i)); err != nil {
			return err
		}
	}
	if fx.Texts.Heading == "" || fx.Texts.Footer == "" {
		return wrapValidation("texts.heading and texts.footer must not be empty")
	}
	if fx.Texts.WrongCredentials == "" {
		return wrapValidation("texts.wrong_credentials must not be empty")
	}
	if fx.Texts.LoggedInSuffix == "" {
		fx.Texts.LoggedInSuffix = "logged in"
	}
	return nil
}

func validateUser(u ir.User, i int) error {
	if u.Name == "" {
		return wrapValidation(fmt.Sprintf("users[%d].name must not be empty", i))
	}
	if u.Username == "" {
		return wrapValidation(fmt.Sprintf("users[%d].username must not be empty", i))
	}
	if u.Password == "" {
		return wrapValidation(fmt.Sprintf("users[%d].password must not be empty", i))
	}
	return nil
}

func validateBlog(b ir.Blog, at string) error {
	if b.Title == "" {
		return wrapValidation(at + ".title must not be empty")
	}
	if b.Likes < 0 {
		return wrapValidation(at + ".likes must not be negative")
	}
	return nil
}

func wrapValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
