// Package ui holds the page helpers shared by every blog app scenario.
package ui

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/playwright-community/playwright-go"

	"blog-e2e/internal/ir"
)

var ErrNoLikes = errors.New("no likes count")

// EntrySelector matches every rendered blog entry.
const EntrySelector = `[data-testid^="blog-"]`

// LoginWith opens the login form, fills in the credentials and submits.
// It returns once the submit click has been dispatched; whether the login
// succeeded is for the caller to assert.
func LoginWith(page playwright.Page, username, password string) error {
	if err := pageButton(page, "log in").Click(); err != nil {
		return fmt.Errorf(`click "log in": %w`, err)
	}
	if err := page.GetByTestId("username").Fill(username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	if err := page.GetByTestId("password").Fill(password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := pageButton(page, "login").Click(); err != nil {
		return fmt.Errorf(`click "login": %w`, err)
	}
	return nil
}

// CreateBlog submits the new blog form. blog.Likes is not part of the form
// and is ignored.
func CreateBlog(page playwright.Page, blog ir.Blog) error {
	if err := pageButton(page, "new blog").Click(); err != nil {
		return fmt.Errorf(`click "new blog": %w`, err)
	}
	fields := []struct{ placeholder, value string }{
		{"Title", blog.Title},
		{"Author", blog.Author},
		{"URL", blog.URL},
	}
	for _, f := range fields {
		sel := fmt.Sprintf("[placeholder=%q]", f.placeholder)
		if err := page.Locator(sel).Fill(f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.placeholder, err)
		}
	}
	if err := pageButton(page, "save").Click(); err != nil {
		return fmt.Errorf(`click "save": %w`, err)
	}
	return nil
}

func Entries(page playwright.Page) playwright.Locator {
	return page.Locator(EntrySelector)
}

// Entry is the first blog entry whose text contains text.
func Entry(page playwright.Page, text string) playwright.Locator {
	return page.Locator(EntrySelector, playwright.PageLocatorOptions{HasText: text}).First()
}

func Notification(page playwright.Page) playwright.Locator {
	return page.Locator(`[data-testid="notification"]`)
}

// Heading matches text exactly so blog titles never collide with it.
func Heading(page playwright.Page, text string) playwright.Locator {
	return page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)})
}

func Text(page playwright.Page, text string) playwright.Locator {
	return page.GetByText(text)
}

// Button is a button inside scope whose text contains text.
func Button(scope playwright.Locator, text string) playwright.Locator {
	return scope.Locator("button", playwright.LocatorLocatorOptions{HasText: text})
}

// PageButton is a button anywhere on the page whose text contains text.
func PageButton(page playwright.Page, text string) playwright.Locator {
	return page.Locator("button", playwright.PageLocatorOptions{HasText: text})
}

func pageButton(page playwright.Page, name string) playwright.Locator {
	return page.GetByRole(*playwright.AriaRoleButton, buttonRole(name))
}

// buttonRole matches the accessible name as a case-insensitive substring.
func buttonRole(name string) playwright.PageGetByRoleOptions {
	return playwright.PageGetByRoleOptions{Name: name}
}

// LikesLine is the paragraph of an expanded entry that carries the count.
func LikesLine(entry playwright.Locator) playwright.Locator {
	return entry.Locator("p", playwright.LocatorLocatorOptions{HasText: "likes:"})
}

// Likes reads the like count of an expanded entry.
func Likes(entry playwright.Locator) (int, error) {
	text, err := LikesLine(entry).InnerText()
	if err != nil {
		return 0, fmt.Errorf("read likes: %w", err)
	}
	return ParseLikes(text)
}

var likesPattern = regexp.MustCompile(`likes:\s*(\d+)`)

// ParseLikes extracts N from text such as "likes: N like".
func ParseLikes(text string) (int, error) {
	m := likesPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("%w in %q", ErrNoLikes, text)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w in %q: %v", ErrNoLikes, text, err)
	}
	return n, nil
}

// LikesText is what the likes line shows for n likes.
func LikesText(n int) string {
	return "likes: " + strconv.Itoa(n)
}

// NonIncreasing reports whether counts never go up. On failure it returns
// the index of the first count that exceeds its predecessor.
func NonIncreasing(counts []int) (int, bool) {
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[i-1] {
			return i, false
		}
	}
	return -1, true
}

// LoggedInText is the banner shown for a logged in user.
func LoggedInText(name, suffix string) string {
	if suffix == "" {
		suffix = "logged in"
	}
	return name + " " + suffix
}

// DialogSource is the part of playwright.Page that emits dialogs.
type DialogSource interface {
	Once(name string, handler interface{})
}

// AcceptNextDialog accepts only the next dialog the page opens. Later dialogs
// fall back to Playwright's default of dismissing them.
func AcceptNextDialog(page DialogSource, logger *log.Logger) {
	page.Once("dialog", func(d playwright.Dialog) {
		if err := d.Accept(); err != nil && logger != nil {
			logger.Warn("accept dialog", "message", d.Message(), "err", err)
		}
	})
}
