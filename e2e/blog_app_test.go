//go:build e2e

package e2e

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"blog-e2e/internal/ir"
	"blog-e2e/internal/parser"
	"blog-e2e/internal/scenario"
)

// The catalogue tree is needed while specs are being built, before
// BeforeSuite has loaded the configured fixtures. Hook names are the only
// thing taken from these defaults; bodies read env.Fixtures at run time.
var _ = describeGroup(scenario.BlogApp(mustDefaultFixtures()))

func describeGroup(g *scenario.Group) bool {
	return Describe(g.Name, func() {
		for _, h := range g.BeforeEach {
			BeforeEach(func(ctx SpecContext) {
				By(h.Name)
				Expect(h.Run(ctx, env)).To(Succeed())
			}, NodeTimeout(time.Minute))
		}
		for _, sc := range g.Scenarios {
			It(sc.Name, Label(sc.Tags...), func(ctx SpecContext) {
				Expect(sc.Run(ctx, env)).To(Succeed())
			}, SpecTimeout(time.Minute))
		}
		for _, sub := range g.Groups {
			describeGroup(sub)
		}
	})
}

func mustDefaultFixtures() *ir.Fixtures {
	fx, err := parser.New().Default()
	if err != nil {
		panic(err)
	}
	return fx
}
