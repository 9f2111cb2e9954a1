// Package normalize canonicalizes raw listing titles into a clean token
// stream for signature extraction and query building.
package normalize

import (
	"regexp"
	"strings"
)

// rewrite is one ordered regex substitution. Order matters: later rules
// assume earlier ones have already collapsed separators.
type rewrite struct {
	re   *regexp.Regexp
	with string
}

// The rewrite chain. Brand-spelling unification runs before punctuation
// stripping because the variants are only recognizable while their
// punctuation is intact ("e-motion" must not become "e motion" first).
var rewrites = []rewrite{
	// Brand spelling variants.
	{regexp.MustCompile(`\be[\s\-'.]?motion\b`), "emotion"},
	{regexp.MustCompile(`\bchromium\b`), "chrome"},
	{regexp.MustCompile(`\bprism\b`), "prizm"},
	// Generational suffix punctuation: "jr." -> "jr".
	{regexp.MustCompile(`\b(jr|sr)\.`), "$1"},
	// Serial fractions keep their slash so 12/99 survives tokenization.
	{regexp.MustCompile(`#\s*(\d+)\s*/\s*(\d+)`), "$1/$2"},
	{regexp.MustCompile(`(\d+)\s*/\s*(\d+)`), "$1/$2"},
	// Everything else non-alphanumeric becomes a space.
	{regexp.MustCompile(`[^a-z0-9/#]+`), " "},
	{regexp.MustCompile(`\s+`), " "},
}

// Title lowercases text, applies the rewrite chain in order and collapses
// whitespace. It is idempotent: Title(Title(s)) == Title(s).
func Title(s string) string {
	s = strings.ToLower(s)
	for _, rw := range rewrites {
		s = rw.re.ReplaceAllString(s, rw.with)
	}
	return strings.TrimSpace(s)
}

// Tokens normalizes and splits a title into its token stream.
func Tokens(s string) []string {
	n := Title(s)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}

// Phrase canonicalizes text for phrase and brand matching: separators
// become spaces and the `#` card-number marker is dropped so "#150" and
// "150" compare equal.
func Phrase(s string) string {
	s = Title(s)
	s = strings.ReplaceAll(s, "#", "")
	return strings.Join(strings.Fields(s), " ")
}
