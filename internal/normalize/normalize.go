// Package normalize canonicalizes raw answer strings for comparison.
//
// Answers are authored and entered in a mixed-punctuation, mixed-language
// environment (full-width Chinese punctuation next to ASCII, 对/错 next to
// true/false). Normalization makes superficially different but semantically
// identical strings compare equal without consulting the remote judge.
package normalize

import (
	"fmt"
	"strings"
	"unicode"
)

// fullwidth maps full-width Chinese punctuation to half-width ASCII.
// The enumeration ideograph 、 folds to an ASCII comma like ，.
var fullwidth = strings.NewReplacer(
	"。", ".",
	"，", ",",
	"！", "!",
	"？", "?",
	"、", ",",
	"；", ";",
	"：", ":",
	"“", `"`,
	"”", `"`,
	"（", "(",
	"）", ")",
)

// tokens maps the accepted spellings of true/false answers to the canonical
// Chinese tokens. Applied only when the token is the entire string, after
// upper-casing, so "true" and "TRUE" both qualify.
var tokens = map[string]string{
	"对":     "正确",
	"错":     "错误",
	"TRUE":  "正确",
	"FALSE": "错误",
}

// String canonicalizes a raw answer. Rules, in order: trim, delete every
// internal whitespace run, upper-case, fold full-width punctuation, then map
// whole-string true/false tokens. The result of normalizing a normalized
// string is the string itself.
func String(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ToUpper(s)
	s = fullwidth.Replace(s)
	if t, ok := tokens[s]; ok {
		return t
	}
	return s
}

// Any coerces an arbitrary value to its string representation before
// normalizing. Callers upstream sometimes hand over decoded JSON where a
// missing answer surfaces as nil or a number rather than a string; this must
// never fail.
func Any(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return String(s)
	}
	return String(fmt.Sprint(v))
}
