// Package signature derives a structured card description from a free-text
// listing title. Extraction is total: any string, including empty or
// adversarial input, yields a well-formed (possibly empty) Signature.
package signature

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/monterey-cards/repricer/internal/normalize"
	"github.com/monterey-cards/repricer/internal/rules"
)

// Signature is the structured description extracted from one title.
// Zero values mean "not found"; an entirely zero Signature disables all
// signature-based strict filtering for that subject.
type Signature struct {
	Year         int      `json:"year,omitempty"`
	CardNumber   string   `json:"card_number,omitempty"`
	PlayerTokens []string `json:"player_tokens,omitempty"`
	BrandFamily  string   `json:"brand_family,omitempty"`
	SetPhrase    string   `json:"set_phrase,omitempty"`
	ColorTerms   []string `json:"color_terms,omitempty"`
	PatternTerms []string `json:"pattern_terms,omitempty"`
	IsInsert     bool     `json:"is_insert,omitempty"`
	IsPromo      bool     `json:"is_promo,omitempty"`
	IsOddball    bool     `json:"is_oddball,omitempty"`
}

// Empty reports whether no field was extracted.
func (s Signature) Empty() bool {
	return s.Year == 0 && s.CardNumber == "" && len(s.PlayerTokens) == 0 &&
		s.BrandFamily == "" && s.SetPhrase == "" &&
		len(s.ColorTerms) == 0 && len(s.PatternTerms) == 0 &&
		!s.IsInsert && !s.IsPromo && !s.IsOddball
}

// Parallels returns the union of color and pattern terms.
func (s Signature) Parallels() []string {
	out := make([]string, 0, len(s.ColorTerms)+len(s.PatternTerms))
	out = append(out, s.ColorTerms...)
	out = append(out, s.PatternTerms...)
	return out
}

// Extractor turns titles into signatures using an injected rule set.
type Extractor struct {
	rules *rules.RuleSet
}

// NewExtractor creates an Extractor bound to the given rule set.
func NewExtractor(rs *rules.RuleSet) *Extractor {
	return &Extractor{rules: rs}
}

var (
	yearRe = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)

	// "#50", "#50a" — but not the numerator of a serial fraction.
	hashNumRe = regexp.MustCompile(`#(\d+[a-z]?)\b`)
	// Fallbacks: "no. 50" / "card 50".
	noNumRe   = regexp.MustCompile(`\bno\.?\s*(\d+[a-z]?)\b`)
	cardNumRe = regexp.MustCompile(`\bcard\s+(\d+[a-z]?)\b`)

	suffixTokens = map[string]struct{}{"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {}, "v": {}}

	alphaRe = regexp.MustCompile(`^[a-z]+$`)
)

// Player tokens longer than this are junk (merged words, store spam).
const maxPlayerTokenLen = 14

// Extract derives a Signature from a raw title. Stages are independent:
// a stage that cannot resolve its field leaves the zero value and the rest
// of the pipeline continues.
func (e *Extractor) Extract(title string) Signature {
	var sig Signature

	norm := normalize.Title(title)
	if norm == "" {
		return sig
	}
	tokens := strings.Fields(norm)

	sig.Year = extractYear(norm)
	sig.CardNumber = extractCardNumber(norm)
	sig.SetPhrase = e.extractSetPhrase(tokens)
	sig.BrandFamily = e.extractBrandFamily(norm)
	sig.PlayerTokens = e.extractPlayerTokens(tokens, sig.SetPhrase)
	sig.ColorTerms, sig.PatternTerms = e.extractParallels(tokens)
	sig.IsInsert = containsAnyTerm(norm, e.rules.InsertTerms())
	sig.IsPromo = containsAnyTerm(norm, e.rules.PromoTerms())
	sig.IsOddball = containsAnyTerm(norm, e.rules.OddballTerms())

	return sig
}

// extractYear returns the first 4-digit token in [1950, 2049], or 0.
func extractYear(norm string) int {
	m := yearRe.FindString(norm)
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}

// extractCardNumber prefers a `#n` token that is not a serial fraction
// numerator, then falls back to `no. n` / `card n` forms.
func extractCardNumber(norm string) string {
	for _, m := range hashNumRe.FindAllStringSubmatchIndex(norm, -1) {
		num := norm[m[2]:m[3]]
		rest := norm[m[1]:]
		// `#12/99` style fractions are serial markers, not card numbers.
		if strings.HasPrefix(rest, "/") {
			continue
		}
		return num
	}
	if m := noNumRe.FindStringSubmatch(norm); m != nil {
		return m[1]
	}
	if m := cardNumRe.FindStringSubmatch(norm); m != nil {
		return m[1]
	}
	return ""
}

// extractSetPhrase scans tokens left to right against the first-token index;
// candidates arrive longest-first so the first hit is the longest match at
// that position. Among all positions the longest phrase wins, ties broken by
// token count then string length.
func (e *Extractor) extractSetPhrase(tokens []string) string {
	var best []string
	for i := 0; i < len(tokens); i++ {
		for _, cand := range e.rules.PhraseCandidates(tokens[i]) {
			if i+len(cand) > len(tokens) {
				continue
			}
			if !equalTokens(tokens[i:i+len(cand)], cand) {
				continue
			}
			if betterPhrase(cand, best) {
				best = cand
			}
			break // longest candidate at this position found
		}
	}
	return strings.Join(best, " ")
}

func betterPhrase(cand, best []string) bool {
	if best == nil {
		return true
	}
	if len(cand) != len(best) {
		return len(cand) > len(best)
	}
	return len(strings.Join(cand, " ")) > len(strings.Join(best, " "))
}

func equalTokens(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// extractBrandFamily finds the longest brand pattern contained in the title.
// Brand detection is independent of set phrases: a title can resolve either
// one without the other.
func (e *Extractor) extractBrandFamily(norm string) string {
	padded := " " + normalize.Phrase(norm) + " "
	for _, b := range e.rules.Brands() { // longest pattern first
		if strings.Contains(padded, " "+b.Pattern+" ") {
			return b.Canonical
		}
	}
	return ""
}

// extractPlayerTokens keeps alphabetic tokens that are not stopwords, not
// part of the set phrase and not over-long, gluing generational suffixes
// onto the preceding token ("griffey jr" -> "griffey-jr").
func (e *Extractor) extractPlayerTokens(tokens []string, setPhrase string) []string {
	phraseTokens := toSet(strings.Fields(setPhrase))

	var out []string
	for _, tok := range tokens {
		if !alphaRe.MatchString(tok) {
			continue
		}
		if _, isSuffix := suffixTokens[tok]; isSuffix {
			if len(out) > 0 {
				out[len(out)-1] = out[len(out)-1] + "-" + tok
			}
			continue
		}
		if len(tok) > maxPlayerTokenLen {
			continue
		}
		if e.rules.IsStopword(tok) {
			continue
		}
		if _, inPhrase := phraseTokens[tok]; inPhrase {
			continue
		}
		if e.rules.IsColorTerm(tok) || e.rules.IsPatternTerm(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// extractParallels partitions recognized variant keywords into color terms
// and pattern terms; downstream matching treats the two with different
// strictness.
func (e *Extractor) extractParallels(tokens []string) (colors, patterns []string) {
	seen := map[string]struct{}{}
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		switch {
		case e.rules.IsColorTerm(tok):
			colors = append(colors, tok)
		case e.rules.IsPatternTerm(tok):
			patterns = append(patterns, tok)
		default:
			continue
		}
		seen[tok] = struct{}{}
	}
	return colors, patterns
}

func containsAnyTerm(norm string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(norm, t) {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
