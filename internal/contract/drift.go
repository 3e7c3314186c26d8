package contract

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// Op identifies one operation of an OpenAPI document.
type Op struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (o Op) String() string { return o.Method + " " + o.Path }

// Operations lists every operation in doc, sorted by path then method.
func Operations(doc *openapi3.T) []Op {
	var out []Op
	if doc == nil || doc.Paths == nil {
		return out
	}
	for p, pi := range doc.Paths.Map() {
		if pi == nil {
			continue
		}
		for method := range pi.Operations() {
			out = append(out, Op{Method: method, Path: p})
		}
	}
	sortOps(out)
	return out
}

type StatusChange struct {
	Op
	Contract  []string `json:"contract"`
	Published []string `json:"published"`
}

// DriftReport compares the contract the suite validates against with an API
// document published by a deployment of the app.
type DriftReport struct {
	Missing       []Op           `json:"missing"`        // in the contract, not published
	Extra         []Op           `json:"extra"`          // published, not in the contract
	ChangedStatus []StatusChange `json:"changed_status"` // same op, different status sets
}

func (r DriftReport) Empty() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.ChangedStatus) == 0
}

func Drift(contract, published *openapi3.T) DriftReport {
	opsC := Operations(contract)
	opsP := Operations(published)
	setC, setP := toSet(opsC), toSet(opsP)

	var rep DriftReport
	for _, op := range opsC {
		if !setP[op] {
			rep.Missing = append(rep.Missing, op)
			continue
		}
		cs, ps := statuses(contract, op), statuses(published, op)
		if !equalStrs(cs, ps) {
			rep.ChangedStatus = append(rep.ChangedStatus, StatusChange{Op: op, Contract: cs, Published: ps})
		}
	}
	for _, op := range opsP {
		if !setC[op] {
			rep.Extra = append(rep.Extra, op)
		}
	}
	return rep
}

// statuses returns the sorted documented status codes of op.
func statuses(doc *openapi3.T, op Op) []string {
	pi := doc.Paths.Value(op.Path)
	if pi == nil {
		return nil
	}
	o := pi.GetOperation(op.Method)
	if o == nil || o.Responses == nil {
		return nil
	}
	out := make([]string, 0, o.Responses.Len())
	for code := range o.Responses.Map() {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func toSet(ops []Op) map[Op]bool {
	m := make(map[Op]bool, len(ops))
	for _, o := range ops {
		m[o] = true
	}
	return m
}

func equalStrs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortOps(ops []Op) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path == ops[j].Path {
			return ops[i].Method < ops[j].Method
		}
		return ops[i].Path < ops[j].Path
	})
}
