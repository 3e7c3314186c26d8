package vars

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

func LoadJSONFiles(paths []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}

		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		for k, v := range m {
			switch x := v.(type) {
			case string:
				out[k] = x
			default:
				out[k] = fmt.Sprint(x) // coerce numbers/bools to string
			}
		}
	}
	return out, nil
}

// FromEnviron returns the process environment as a vars map.
func FromEnviron() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.Index(kv, "="); i > 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// Merge layers maps left to right; later maps win.
func Merge(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range layers {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate expands ${KEY} and ${KEY|default}. A missing key without a
// default is left intact so FindUnresolved can report it.
func Interpolate(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[2 : len(m)-1]
		key, def := inner, ""
		if i := strings.Index(inner, "|"); i >= 0 {
			key, def = inner[:i], inner[i+1:]
		}
		if v, ok := vars[key]; ok && v != "" {
			return v
		}
		if def != "" {
			return def
		}
		return m
	})
}

func FindUnresolved(s string) []string {
	var out []string
	for _, m := range varPattern.FindAllStringSubmatch(s, -1) {
		key := m[1]
		if i := strings.Index(key, "|"); i >= 0 {
			continue
		} // had default
		out = append(out, "${"+key+"}")
	}
	return out
}
