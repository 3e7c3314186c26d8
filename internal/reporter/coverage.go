package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"blog-e2e/internal/contract"
)

type CoverageReport struct {
	Total        int      `json:"total"`
	Covered      int      `json:"covered"`
	Percent      float64  `json:"percent"`
	CoveredSet   []string `json:"covered_set"`
	UncoveredSet []string `json:"uncovered_set"`

	Violations []contract.Violation `json:"violations,omitempty"`
}

// WriteCoverage writes the coverage of doc together with any contract
// violations. covered is: method -> pathTemplate -> true
func WriteCoverage(w io.Writer, doc *openapi3.T, covered map[string]map[string]bool, violations []contract.Violation) error {
	rep := ComputeCoverage(doc, covered)
	rep.Violations = violations
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func ComputeCoverage(doc *openapi3.T, covered map[string]map[string]bool) CoverageReport {
	all := allOps(doc)
	cset := flattenCovered(covered)

	var coveredCount int
	var coveredList []string
	var uncoveredList []string

	for _, op := range all {
		if cset[op] {
			coveredCount++
			coveredList = append(coveredList, op)
		} else {
			uncoveredList = append(uncoveredList, op)
		}
	}
	sort.Strings(coveredList)
	sort.Strings(uncoveredList)

	return CoverageReport{
		Total:        len(all),
		Covered:      coveredCount,
		Percent:      pct(coveredCount, len(all)),
		CoveredSet:   coveredList,
		UncoveredSet: uncoveredList,
	}
}

func allOps(doc *openapi3.T) []string {
	ops := contract.Operations(doc)
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, sig(op.Method, op.Path))
	}
	return out
}

func flattenCovered(m map[string]map[string]bool) map[string]bool {
	out := map[string]bool{}
	for method, paths := range m {
		for path := range paths {
			out[sig(strings.ToUpper(method), path)] = true
		}
	}
	return out
}

func sig(method, path string) string { return fmt.Sprintf("%s %s", method, path) }

func pct(n, d int) float64 {
	if d == 0 {
		return 100.0
	}
	return float64(n) * 100.0 / float64(d)
}
