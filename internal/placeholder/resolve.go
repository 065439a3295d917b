package placeholder

import "strings"

// Resolve implements resolve(value, ctx) -> value' from spec §4.1. It
// accepts a string, []any, map[string]any (or Context) and returns a new
// value of the same shape with every {{KEY}} token replaced. An
// unresolved KEY is left literal, braces included. Resolution performs
// no I/O and does not re-expand tokens found inside a substituted value
// (bounded, non-recursive per cell, per spec §3).
func Resolve(value any, ctx Context) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, ctx)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Resolve(elem, ctx)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = resolveString(elem, ctx)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = Resolve(elem, ctx)
		}
		return out
	case Context:
		return Resolve(map[string]any(v), ctx)
	default:
		return v
	}
}

// ResolveString is the string-only entry point; the command builder
// calls this directly when the shape is already known.
func ResolveString(s string, ctx Context) string {
	return resolveString(s, ctx)
}

// resolveString replaces every maximal non-overlapping {{KEY}} substring.
// A malformed/unterminated "{{" is left as-is (there is no closing "}}"
// to define a maximal match).
func resolveString(s string, ctx Context) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start + 2

		b.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+2 : end])
		if val, ok := ctx.Lookup(key); ok {
			b.WriteString(Stringify(val))
		} else {
			b.WriteString(rest[start : end+2])
		}
		rest = rest[end+2:]
	}
	return b.String()
}
