// Package scenario describes the blog app suite as a tree of groups,
// before-each hooks and scenarios. Drivers flatten the tree into cases and
// run each case's hooks followed by its body.
package scenario

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/playwright-community/playwright-go"

	"blog-e2e/internal/ir"
)

// Seeder resets the backend and registers users.
type Seeder interface {
	Seed(ctx context.Context, users []ir.User) error
}

// Env is everything a hook or scenario body may touch.
type Env struct {
	Page     playwright.Page
	Expect   playwright.PlaywrightAssertions
	Seeder   Seeder
	Fixtures *ir.Fixtures
	Log      *log.Logger
}

type Func func(ctx context.Context, env *Env) error

type Hook struct {
	Name string
	Run  Func
}

type Scenario struct {
	Name string
	Tags []string
	Run  Func
}

type Group struct {
	Name       string
	BeforeEach []Hook
	Scenarios  []Scenario
	Groups     []*Group
}

// Case is a scenario with its inherited hooks, ready to run on its own.
type Case struct {
	Path  []string
	Name  string
	Tags  []string
	Hooks []Hook
	Run   Func
}

const pathSep = " › "

func (c Case) FullName() string {
	parts := append(append([]string{}, c.Path...), c.Name)
	return strings.Join(parts, pathSep)
}

// Flatten walks root depth first. A group's own scenarios come before its
// subgroups and hooks are ordered outermost first.
func Flatten(root *Group) []Case {
	var out []Case
	var walk func(g *Group, path []string, hooks []Hook)
	walk = func(g *Group, path []string, hooks []Hook) {
		path = append(append([]string{}, path...), g.Name)
		hooks = append(append([]Hook{}, hooks...), g.BeforeEach...)
		for _, sc := range g.Scenarios {
			out = append(out, Case{
				Path:  path,
				Name:  sc.Name,
				Tags:  append([]string(nil), sc.Tags...),
				Hooks: hooks,
				Run:   sc.Run,
			})
		}
		for _, sub := range g.Groups {
			walk(sub, path, hooks)
		}
	}
	if root != nil {
		walk(root, nil, nil)
	}
	return out
}

// FilterTags keeps cases carrying any include tag and drops cases carrying
// any exclude tag. Matching ignores case; empty lists disable that side.
func FilterTags(in []Case, include, exclude []string) []Case {
	if len(include) == 0 && len(exclude) == 0 {
		return in
	}
	toSet := func(ss []string) map[string]bool {
		m := map[string]bool{}
		for _, s := range ss {
			m[strings.ToLower(s)] = true
		}
		return m
	}
	inc, exc := toSet(include), toSet(exclude)
	hasAny := func(tags []string, m map[string]bool) bool {
		for _, t := range tags {
			if m[strings.ToLower(t)] {
				return true
			}
		}
		return false
	}
	out := make([]Case, 0, len(in))
	for _, c := range in {
		if len(inc) > 0 && !hasAny(c.Tags, inc) {
			continue
		}
		if len(exc) > 0 && hasAny(c.Tags, exc) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FilterGrep keeps cases whose full name matches re. A nil re keeps all.
func FilterGrep(in []Case, re *regexp.Regexp) []Case {
	if re == nil {
		return in
	}
	out := make([]Case, 0, len(in))
	for _, c := range in {
		if re.MatchString(c.FullName()) {
			out = append(out, c)
		}
	}
	return out
}
