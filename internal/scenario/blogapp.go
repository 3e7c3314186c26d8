package scenario

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"blog-e2e/internal/ir"
	"blog-e2e/internal/ui"
)

// BlogApp builds the blog app suite. fx only names the hooks; the bodies
// read fixtures from Env so one catalogue can serve several fixture sets.
func BlogApp(fx *ir.Fixtures) *Group {
	return &Group{
		Name:       "Blog app",
		BeforeEach: []Hook{{Name: "reset, seed users and open front page", Run: seedAndOpen}},
		Scenarios: []Scenario{
			{Name: "front page can be opened", Tags: []string{"smoke"}, Run: frontPageOpens},
			{Name: "user can login with correct credentials", Tags: []string{"login"}, Run: loginSucceeds},
			{Name: "login fails with wrong password", Tags: []string{"login"}, Run: loginFails},
		},
		Groups: []*Group{{
			Name:       "when logged in",
			BeforeEach: []Hook{{Name: "log in as " + fx.Owner().Username, Run: loginOwner}},
			Scenarios: []Scenario{
				{Name: "a new blog can be created", Tags: []string{"blogs"}, Run: blogCreated},
			},
			Groups: []*Group{{
				Name:       "and a blog exists",
				BeforeEach: []Hook{{Name: fmt.Sprintf("create %d blogs", len(fx.Blogs)), Run: createBlogs}},
				Scenarios: []Scenario{
					{Name: "a blog can be liked", Tags: []string{"likes"}, Run: blogLiked},
					{Name: "a blog can be removed by the user who created it", Tags: []string{"remove"}, Run: blogRemovedByCreator},
					{Name: "only the adder of blog can remove", Tags: []string{"remove"}, Run: onlyAdderCanRemove},
					{Name: "blogs are sorted with the most likes first", Tags: []string{"likes", "sort"}, Run: blogsSortedByLikes},
				},
			}},
		}},
	}
}

func seedAndOpen(ctx context.Context, env *Env) error {
	if err := env.Seeder.Seed(ctx, env.Fixtures.Users); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if _, err := env.Page.Goto("/"); err != nil {
		return fmt.Errorf("open front page: %w", err)
	}
	return nil
}

func loginOwner(_ context.Context, env *Env) error {
	u := env.Fixtures.Owner()
	return ui.LoginWith(env.Page, u.Username, u.Password)
}

// createBlogs adds every fixture blog and waits until all are listed.
func createBlogs(_ context.Context, env *Env) error {
	for _, b := range env.Fixtures.Blogs {
		if err := ui.CreateBlog(env.Page, b); err != nil {
			return fmt.Errorf("create %q: %w", b.Title, err)
		}
	}
	if err := env.Expect.Locator(ui.Entries(env.Page)).ToHaveCount(len(env.Fixtures.Blogs)); err != nil {
		return fmt.Errorf("wait for %d blogs: %w", len(env.Fixtures.Blogs), err)
	}
	return nil
}

func frontPageOpens(_ context.Context, env *Env) error {
	t := env.Fixtures.Texts
	if err := visible(env, ui.Heading(env.Page, t.Heading), "heading"); err != nil {
		return err
	}
	return visible(env, ui.Text(env.Page, t.Footer), "footer")
}

func loginSucceeds(_ context.Context, env *Env) error {
	u := env.Fixtures.Owner()
	if err := ui.LoginWith(env.Page, u.Username, u.Password); err != nil {
		return err
	}
	return visible(env, ui.Text(env.Page, loggedIn(env, u)), "logged in banner")
}

func loginFails(_ context.Context, env *Env) error {
	u := env.Fixtures.Owner()
	if err := ui.LoginWith(env.Page, u.Username, "wrong"); err != nil {
		return err
	}
	if err := env.Expect.Locator(ui.Notification(env.Page)).ToContainText(env.Fixtures.Texts.WrongCredentials); err != nil {
		return fmt.Errorf("notification: %w", err)
	}
	if err := env.Expect.Locator(ui.Text(env.Page, loggedIn(env, u))).Not().ToBeVisible(); err != nil {
		return fmt.Errorf("logged in banner still shown: %w", err)
	}
	return nil
}

func blogCreated(_ context.Context, env *Env) error {
	b := env.Fixtures.NewBlog
	if err := ui.CreateBlog(env.Page, b); err != nil {
		return err
	}
	note := ui.Notification(env.Page)
	if err := env.Expect.Locator(note).ToContainText(b.Title); err != nil {
		return fmt.Errorf("notification: %w", err)
	}
	if err := visible(env, note, "notification"); err != nil {
		return err
	}
	if err := ui.Entries(env.Page).First().WaitFor(); err != nil {
		return fmt.Errorf("wait for any blog: %w", err)
	}
	return visible(env, ui.Entry(env.Page, b.Title), "new blog entry")
}

func blogLiked(_ context.Context, env *Env) error {
	entry := existingEntry(env)
	if err := visible(env, entry, "blog entry"); err != nil {
		return err
	}
	if err := ui.Button(entry, "view").Click(); err != nil {
		return fmt.Errorf("click view: %w", err)
	}
	n, err := ui.Likes(entry)
	if err != nil {
		return err
	}
	if err := ui.Button(entry, "like").Click(); err != nil {
		return fmt.Errorf("click like: %w", err)
	}
	if err := env.Expect.Locator(ui.LikesLine(entry)).ToContainText(ui.LikesText(n + 1)); err != nil {
		return fmt.Errorf("likes after like: %w", err)
	}
	return nil
}

func blogRemovedByCreator(_ context.Context, env *Env) error {
	entry, remove, err := expandAfterReload(env)
	if err != nil {
		return err
	}
	ui.AcceptNextDialog(env.Page, env.Log)
	if err := remove.Click(); err != nil {
		return fmt.Errorf("click remove: %w", err)
	}
	if err := env.Expect.Locator(entry).Not().ToBeVisible(); err != nil {
		return fmt.Errorf("entry still shown after remove: %w", err)
	}
	return nil
}

func onlyAdderCanRemove(_ context.Context, env *Env) error {
	entry, remove, err := expandAfterReload(env)
	if err != nil {
		return err
	}
	logout := ui.PageButton(env.Page, "logout")
	if err := visible(env, logout, "logout button"); err != nil {
		return err
	}
	if err := logout.Click(); err != nil {
		return fmt.Errorf("click logout: %w", err)
	}

	other := env.Fixtures.Other()
	if err := ui.LoginWith(env.Page, other.Username, other.Password); err != nil {
		return err
	}
	if err := visible(env, entry, "blog entry"); err != nil {
		return err
	}
	view := ui.Button(entry, "view")
	if err := visible(env, view, "view button"); err != nil {
		return err
	}
	if err := view.Click(); err != nil {
		return fmt.Errorf("click view: %w", err)
	}
	if err := env.Expect.Locator(remove).Not().ToBeVisible(); err != nil {
		return fmt.Errorf("remove shown to another user: %w", err)
	}
	return nil
}

func blogsSortedByLikes(_ context.Context, env *Env) error {
	entries := ui.Entries(env.Page)
	n, err := entries.Count()
	if err != nil {
		return fmt.Errorf("count blogs: %w", err)
	}
	counts := make([]int, 0, n)
	for i := 0; i < n; i++ {
		entry := entries.Nth(i)
		if err := ui.Button(entry, "view").Click(); err != nil {
			return fmt.Errorf("click view on blog %d: %w", i, err)
		}
		likes, err := ui.Likes(entry)
		if err != nil {
			return fmt.Errorf("blog %d: %w", i, err)
		}
		counts = append(counts, likes)
	}
	if at, ok := ui.NonIncreasing(counts); !ok {
		return fmt.Errorf("blog %d has %d likes, more than the %d above it (all: %v)", at, counts[at], counts[at-1], counts)
	}
	return nil
}

// expandAfterReload reloads the page, opens the first fixture blog and waits
// for its remove button to be shown.
func expandAfterReload(env *Env) (entry, remove playwright.Locator, err error) {
	entry = existingEntry(env)
	if err := visible(env, entry, "blog entry"); err != nil {
		return nil, nil, err
	}
	if _, err := env.Page.Reload(); err != nil {
		return nil, nil, fmt.Errorf("reload: %w", err)
	}
	view := ui.Button(entry, "view")
	if err := visible(env, view, "view button"); err != nil {
		return nil, nil, err
	}
	if err := view.Click(); err != nil {
		return nil, nil, fmt.Errorf("click view: %w", err)
	}
	remove = ui.Button(entry, "remove")
	if err := visible(env, remove, "remove button"); err != nil {
		return nil, nil, err
	}
	return entry, remove, nil
}

func existingEntry(env *Env) playwright.Locator {
	b := env.Fixtures.Blogs[0]
	return ui.Entry(env.Page, b.Title+" "+b.Author)
}

func loggedIn(env *Env, u ir.User) string {
	return ui.LoggedInText(u.Name, env.Fixtures.Texts.LoggedInSuffix)
}

func visible(env *Env, l playwright.Locator, what string) error {
	if err := env.Expect.Locator(l).ToBeVisible(); err != nil {
		return fmt.Errorf("%s not visible: %w", what, err)
	}
	return nil
}
