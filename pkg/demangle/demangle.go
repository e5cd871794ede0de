// Package demangle turns the unwinder's raw procedure names into something
// readable for display: a demangle step that passes names through
// unchanged, and an abbreviator that drops template argument lists so
// deeply-templated names fit on one terminal line.
package demangle

import "strings"

// Name is the demangle step for a raw, possibly-mangled procedure name. It
// performs no Itanium ABI demangling: every input, including names with the
// "_Z" prefix, is returned unchanged, which is the same result a failed
// demangle falls back to.
func Name(raw string) string {
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "_Z") {
		return raw
	}
	// Mangled names are not decoded; the mangled text is passed through
	// unchanged rather than guessed at.
	return raw
}

// Abbrev drops every template argument list (the text between a `<` and
// its matching `>`) from name, so `foo<std::vector<int, std::allocator<int>>>`
// renders as `foo`. Nesting is tracked so only the outermost `<...>` run is
// removed even when template arguments themselves contain `<`/`>`.
func Abbrev(name string) string {
	var b strings.Builder
	nesting := 0
	for _, c := range name {
		if c == '<' {
			nesting++
		}
		if nesting < 1 {
			b.WriteRune(c)
		}
		if c == '>' {
			nesting--
		}
	}
	return b.String()
}

// Display is the composition the sinks use: demangle, then abbreviate.
func Display(raw string) string {
	return Abbrev(Name(raw))
}
