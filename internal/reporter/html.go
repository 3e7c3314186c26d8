package reporter

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"blog-e2e/internal/contract"
	"blog-e2e/internal/executor"
)

func WriteHTML(w io.Writer, suiteName string, res *executor.SuiteResult) error {
	var sb strings.Builder

	sb.WriteString(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
	sb.WriteString(`<meta name="viewport" content="width=device-width,initial-scale=1">`)
	sb.WriteString(`<title>blog-e2e report: ` + html.EscapeString(suiteName) + `</title>`)
	sb.WriteString(`<style>
:root { --ok:#0a0; --bad:#b00; --muted:#666; --chip:#eee; --line:#e5e5e5; }
body{font-family:system-ui,Segoe UI,Roboto,Arial,sans-serif;margin:24px;line-height:1.45}
h1{margin:0 0 12px}
h2{margin:0 0 4px;font-size:1.05rem}
.summary{display:flex;gap:12px;align-items:center;margin:12px 0 18px;flex-wrap:wrap}
.pass{color:var(--ok)} .fail{color:var(--bad)} .skip{color:var(--muted)}
.badge{display:inline-block;padding:2px 8px;border-radius:999px;background:var(--chip);font-size:.85rem}
.card{border:1px solid var(--line);border-radius:12px;padding:16px;margin:12px 0}
.step{margin:6px 0}
details>summary{cursor:pointer;list-style:none}
details>summary::-webkit-details-marker{display:none}
summary {padding:6px 0}
pre{background:#f8f8f8;padding:12px;border-radius:8px;overflow:auto;max-height:320px;margin:8px 0 0;white-space:pre-wrap}
.muted{color:var(--muted)}
hr{border:0;border-top:1px solid var(--line);margin:20px 0}
.small{font-size:.85rem}
img.shot{max-width:100%;border:1px solid var(--line);border-radius:8px;margin-top:8px}
</style></head><body>`)

	var failed int
	for _, sc := range res.Scenarios {
		if !sc.Passed {
			failed++
		}
	}

	// Header
	sb.WriteString(`<h1>` + html.EscapeString(suiteName) + `</h1>`)
	sb.WriteString(`<div class="summary">`)
	sb.WriteString(`<div>Status: <strong class="` + statusClass(res.Passed) + `">` + tern(res.Passed, "PASS", "FAIL") + `</strong></div>`)
	sb.WriteString(chip("Duration: " + ms(res.DurationMs)))
	sb.WriteString(chip("Scenarios: " + strconv.Itoa(len(res.Scenarios))))
	sb.WriteString(chip("Failed: " + strconv.Itoa(failed)))
	if res.RunID != "" {
		sb.WriteString(chip("Run: " + res.RunID))
	}
	sb.WriteString(`</div><hr>`)

	// Scenarios
	for _, sc := range res.Scenarios {
		sb.WriteString(`<div class="card">`)
		sb.WriteString(`<h2>` + html.EscapeString(sc.Name) + ` ` + badgeStatus(sc.Passed) + ` ` + chip(ms(sc.DurationMs)) + `</h2>`)
		sb.WriteString(`<div class="small muted">`)
		if sc.Backend != "" {
			sb.WriteString(`backend ` + html.EscapeString(sc.Backend) + ` `)
		}
		for _, tag := range sc.Tags {
			sb.WriteString(chip(tag) + ` `)
		}
		sb.WriteString(`</div>`)

		for i, st := range sc.Steps {
			sb.WriteString(`<div class="step">`)
			sb.WriteString(`<details ` + tern(!st.Passed && !st.Skipped, "open", "") + `>`)
			sb.WriteString(`<summary>` + strconv.Itoa(i+1) + `. ` + html.EscapeString(st.Kind) + ` • ` + html.EscapeString(st.Name) + ` ` + stepBadge(st) + ` ` + chip(ms(st.DurationMs)) + `</summary>`)
			switch {
			case len(st.Errors) > 0:
				sb.WriteString(`<pre>`)
				for _, e := range st.Errors {
					sb.WriteString(html.EscapeString(e) + "\n")
				}
				sb.WriteString(`</pre>`)
			case st.Skipped:
				sb.WriteString(`<div class="small muted">Skipped after an earlier failure.</div>`)
			default:
				sb.WriteString(`<div class="small muted">No errors.</div>`)
			}
			sb.WriteString(`</details>`)
			sb.WriteString(`</div>`)
		}

		if sc.Screenshot != "" {
			src := screenshotHref(sc.Screenshot)
			sb.WriteString(`<details open><summary class="small muted">Screenshot</summary>`)
			sb.WriteString(`<a href="` + html.EscapeString(src) + `"><img class="shot" alt="failure screenshot" src="` + html.EscapeString(src) + `"></a>`)
			sb.WriteString(`</details>`)
		}
		if len(sc.Violations) > 0 {
			sb.WriteString(`<div class="small muted" style="margin-top:10px;">API contract</div>`)
			sb.WriteString(`<pre>` + html.EscapeString(violationBlock(sc.Violations)) + `</pre>`)
		}
		sb.WriteString(`</div>`)
	}

	if len(res.Violations) > 0 {
		sb.WriteString(`<hr><h2>API contract violations (` + strconv.Itoa(len(res.Violations)) + `)</h2>`)
		sb.WriteString(`<pre>` + html.EscapeString(violationBlock(res.Violations)) + `</pre>`)
	}

	sb.WriteString(`</body></html>`)
	_, err := io.WriteString(w, sb.String())
	return err
}

// --- Helper that guarantees HTML matches the on-disk results.json ---

func WriteHTMLFromJSONPath(w io.Writer, suiteName, resultsJSONPath string) error {
	data, err := os.ReadFile(resultsJSONPath)
	if err != nil {
		return fmt.Errorf("read results.json: %w", err)
	}
	var res executor.SuiteResult
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("decode results.json: %w", err)
	}
	return WriteHTML(w, suiteName, &res)
}

// screenshotHref links a screenshot relative to the report, which sits next
// to the screenshots directory.
func screenshotHref(p string) string {
	p = filepath.ToSlash(p)
	return path.Join(path.Base(path.Dir(p)), path.Base(p))
}

func violationBlock(vs []contract.Violation) string {
	var b strings.Builder
	for _, v := range vs {
		if v.Scenario != "" {
			b.WriteString("[" + v.Scenario + "] ")
		}
		fmt.Fprintf(&b, "%s %s -> %d\n  %s\n", v.Method, v.URL, v.Status, v.Error)
	}
	return b.String()
}

func statusClass(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

func badgeStatus(ok bool) string {
	if ok {
		return `<span class="badge pass">PASS</span>`
	}
	return `<span class="badge fail">FAIL</span>`
}

func stepBadge(st executor.StepResult) string {
	if st.Skipped {
		return `<span class="badge skip">SKIP</span>`
	}
	return badgeStatus(st.Passed)
}

func chip(text string) string {
	return `<span class="badge">` + html.EscapeString(text) + `</span>`
}

func ms(v float64) string { return fmt.Sprintf("%.0f ms", v) }

func tern[T ~string](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
