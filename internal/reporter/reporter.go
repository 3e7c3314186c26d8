package reporter

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"blog-e2e/internal/executor"
)

// -------- JSON --------

func WriteJSON(w io.Writer, res *executor.SuiteResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// -------- JUnit XML --------

// Minimal JUnit schema: testsuite -> testcase (+failure|skipped)
type junitTestsuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	ID       string          `xml:"id,attr,omitempty"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Time     string          `xml:"time,attr"`
	Testcase []junitTestcase `xml:"testcase"`
}

type junitTestcase struct {
	Classname string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit emits one testcase per scenario. The failure text lists every
// failed step; screenshots are referenced with the ATTACHMENT convention
// understood by most CI servers.
func WriteJUnit(w io.Writer, suiteName string, res *executor.SuiteResult) error {
	var failures int
	cases := make([]junitTestcase, 0, len(res.Scenarios))

	for _, sc := range res.Scenarios {
		tc := junitTestcase{
			Classname: sc.Group,
			Name:      shortName(sc),
			Time:      fmt.Sprintf("%.3f", sc.DurationMs/1000.0),
		}
		if !sc.Passed {
			failures++
			var lines []string
			msg := "scenario failed"
			for _, st := range sc.Steps {
				if st.Passed || st.Skipped {
					continue
				}
				if len(lines) == 0 && len(st.Errors) > 0 {
					msg = st.Errors[0]
				}
				for _, e := range st.Errors {
					lines = append(lines, fmt.Sprintf("[%s] %s: %s", st.Kind, st.Name, e))
				}
			}
			tc.Failure = &junitFailure{
				Message: msg,
				Type:    "AssertionError",
				Text:    joinErrs(lines),
			}
		}
		if sc.Screenshot != "" {
			tc.SystemOut = "[[ATTACHMENT|" + sc.Screenshot + "]]"
		}
		cases = append(cases, tc)
	}

	ts := junitTestsuite{
		Name:     suiteName,
		ID:       res.RunID,
		Tests:    len(cases),
		Failures: failures,
		Time:     fmt.Sprintf("%.3f", res.DurationMs/1000.0),
		Testcase: cases,
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(ts)
}

// shortName strips the group path from a scenario's full name.
func shortName(sc executor.ScenarioResult) string {
	if sc.Group == "" {
		return sc.Name
	}
	return strings.TrimPrefix(sc.Name, sc.Group+" › ")
}

func joinErrs(errs []string) string {
	return strings.Join(errs, "\n")
}
