// Package placeholder implements the {{Token}} / {{Ns.Key}} substitution
// engine (spec §4.1) used to expand operation scripts, args, and the
// layered placeholder context (spec §3) before a command is built or a
// script is run.
package placeholder

import "fmt"

// Context is a layered, read-only lookup tree. Values may be scalars,
// []any, or map[string]any (itself walked by dotted keys). A Context is
// immutable once built with Merge — callers compose layers at resolve
// time rather than mutating one shared map, matching the "composed at
// resolve time" precedence in spec §3.
type Context map[string]any

// Merge composes layers into one Context, highest precedence last-wins.
// Per spec §3 the caller passes layers lowest-precedence first:
// project-derived built-ins, module-derived built-ins, engine config,
// module config overlay, operation descriptor fields, operation answers.
func Merge(layers ...Context) Context {
	out := make(Context)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Lookup resolves a dotted key against the context. Returns ok=false if
// any segment of the path is missing or not a map.
func (c Context) Lookup(key string) (any, bool) {
	segs := splitDotted(key)
	var cur any = map[string]any(c)
	for _, seg := range segs {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Context:
		return map[string]any(m), true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

func splitDotted(key string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			segs = append(segs, key[start:i])
			start = i + 1
		}
	}
	segs = append(segs, key[start:])
	return segs
}

// Stringify renders a looked-up value the way resolve() substitutes it
// into a string: culture-invariant, no quoting of strings.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
