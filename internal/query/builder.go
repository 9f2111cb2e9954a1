// Package query turns a subject title into a ranked list of marketplace
// search strings, highest-confidence first.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/monterey-cards/repricer/internal/normalize"
	"github.com/monterey-cards/repricer/internal/rules"
	"github.com/monterey-cards/repricer/internal/signature"
)

// Builder assembles candidate queries from a title's signature.
type Builder struct {
	extractor *signature.Extractor
	rules     *rules.RuleSet
	titleCase cases.Caser
}

// NewBuilder creates a Builder using the given extractor and rule set.
func NewBuilder(ex *signature.Extractor, rs *rules.RuleSet) *Builder {
	return &Builder{
		extractor: ex,
		rules:     rs,
		titleCase: cases.Title(language.AmericanEnglish),
	}
}

// Build returns candidate queries in priority order, deduplicated
// case-insensitively. The raw normalized title is always the last resort, so
// the result is never empty for a non-empty title. Each query carries the
// negative-term block for terms not literally present in the subject.
func (b *Builder) Build(title string) []string {
	norm := normalize.Title(title)
	if norm == "" {
		return nil
	}

	sig := b.extractor.Extract(title)

	year := ""
	if sig.Year > 0 {
		year = strconv.Itoa(sig.Year)
	}
	player := b.playerPhrase(sig)
	phrase := b.corePhrase(sig)
	num := sig.CardNumber

	var candidates []string
	if year != "" && phrase != "" && num != "" && player != "" {
		candidates = append(candidates, fmt.Sprintf("%s %s #%s %s", year, phrase, num, player))
	}
	if phrase != "" && num != "" && player != "" {
		candidates = append(candidates,
			fmt.Sprintf("%s #%s %s", phrase, num, player),
			fmt.Sprintf("%s %s #%s", player, phrase, num),
		)
	}
	if year != "" && phrase != "" && player != "" {
		candidates = append(candidates, fmt.Sprintf("%s %s %s", year, phrase, player))
	}
	if year != "" && phrase != "" {
		candidates = append(candidates, fmt.Sprintf("%s %s", year, phrase))
	}
	if phrase != "" && player != "" {
		candidates = append(candidates, fmt.Sprintf("%s %s", phrase, player))
	}
	candidates = append(candidates, norm)

	negatives := b.negativeBlock(norm)

	seen := map[string]struct{}{}
	out := make([]string, 0, len(candidates))
	for _, q := range candidates {
		q = strings.Join(strings.Fields(q), " ")
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		if negatives != "" {
			q += " " + negatives
		}
		out = append(out, q)
	}
	return out
}

// corePhrase prefers the canonical set phrase, falling back to the brand
// family.
func (b *Builder) corePhrase(sig signature.Signature) string {
	if sig.SetPhrase != "" {
		return b.titleCase.String(sig.SetPhrase)
	}
	if sig.BrandFamily != "" {
		return b.titleCase.String(sig.BrandFamily)
	}
	return ""
}

func (b *Builder) playerPhrase(sig signature.Signature) string {
	if len(sig.PlayerTokens) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sig.PlayerTokens))
	for _, tok := range sig.PlayerTokens {
		// Glued suffixes ("griffey-jr") go back to surface form.
		tok = strings.ReplaceAll(tok, "-", " ")
		parts = append(parts, b.titleCase.String(tok))
	}
	return strings.Join(parts, " ")
}

// negativeBlock renders "-lot -break ..." skipping terms the subject title
// itself contains: a "Showcase" title must not exclude itself from its own
// results, so the check is substring rather than whole-token.
func (b *Builder) negativeBlock(normTitle string) string {
	var parts []string
	for _, term := range b.rules.NegativeTerms() {
		if strings.Contains(normTitle, term) {
			continue
		}
		parts = append(parts, "-"+term)
	}
	return strings.Join(parts, " ")
}
