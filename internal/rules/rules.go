// Package rules holds the classification rule tables mined offline from
// historical listings. A RuleSet is immutable after Load and is injected into
// the extractor, query builder and matcher, so tests can supply small
// hand-built tables and a caller can hot-reload by swapping the pointer.
package rules

import (
	"sort"
	"strings"
)

// BrandPattern maps a title substring to its canonical brand-family key.
type BrandPattern struct {
	Pattern   string `yaml:"pattern"`
	Canonical string `yaml:"canonical"`
}

// Similarity holds thresholds for fuzzy set-name comparison.
type Similarity struct {
	MinJaccard          float64 `yaml:"min_jaccard"`
	MinLevenshteinRatio float64 `yaml:"min_levenshtein_ratio"`
}

// RuleSet is the full immutable rule-table bundle.
type RuleSet struct {
	brands       []BrandPattern
	phraseIndex  map[string][][]string
	colorTerms   map[string]struct{}
	patternTerms map[string]struct{}
	insertTerms  []string
	promoTerms   []string
	oddballTerms []string
	hardExclude  []string
	softParallel []string
	damageTerms  []string
	lotTerms     []string
	gradedTerms  []string
	negative     []string
	stopwords    map[string]struct{}
	similarity   Similarity
}

// tables is the raw on-disk shape of the rule files.
type tables struct {
	Brands     []BrandPattern     `yaml:"brand_families"`
	SetPhrases map[string]float64 `yaml:"set_phrases"`

	ParallelColorTerms   []string `yaml:"parallel_color_terms"`
	ParallelPatternTerms []string `yaml:"parallel_pattern_terms"`
	InsertTerms          []string `yaml:"insert_terms"`
	PromoTerms           []string `yaml:"promo_terms"`
	OddballTerms         []string `yaml:"oddball_terms"`
	HardExcludeTerms     []string `yaml:"hard_exclude_terms"`
	SoftParallelTerms    []string `yaml:"soft_parallel_terms"`
	DamageTerms          []string `yaml:"damage_terms"`
	LotTerms             []string `yaml:"lot_terms"`
	GradedTerms          []string `yaml:"graded_terms"`
	NegativeTerms        []string `yaml:"negative_terms"`
	Stopwords            []string `yaml:"stopwords"`

	Similarity Similarity `yaml:"similarity"`
}

func build(t tables) *RuleSet {
	rs := &RuleSet{
		brands:       make([]BrandPattern, 0, len(t.Brands)),
		phraseIndex:  map[string][][]string{},
		colorTerms:   toSet(t.ParallelColorTerms),
		patternTerms: toSet(t.ParallelPatternTerms),
		insertTerms:  lowerAll(t.InsertTerms),
		promoTerms:   lowerAll(t.PromoTerms),
		oddballTerms: lowerAll(t.OddballTerms),
		hardExclude:  lowerAll(t.HardExcludeTerms),
		softParallel: lowerAll(t.SoftParallelTerms),
		damageTerms:  lowerAll(t.DamageTerms),
		lotTerms:     lowerAll(t.LotTerms),
		gradedTerms:  lowerAll(t.GradedTerms),
		negative:     lowerAll(t.NegativeTerms),
		stopwords:    toSet(t.Stopwords),
		similarity:   t.Similarity,
	}

	for _, b := range t.Brands {
		p := canonicalPhrase(b.Pattern)
		c := canonicalPhrase(b.Canonical)
		if p == "" || c == "" {
			continue
		}
		rs.brands = append(rs.brands, BrandPattern{Pattern: p, Canonical: c})
	}
	// Longest pattern first so "topps chrome" wins over "topps".
	sort.SliceStable(rs.brands, func(i, j int) bool {
		return len(rs.brands[i].Pattern) > len(rs.brands[j].Pattern)
	})

	for phrase := range t.SetPhrases {
		toks := strings.Fields(canonicalPhrase(phrase))
		if len(toks) == 0 {
			continue
		}
		first := toks[0]
		rs.phraseIndex[first] = append(rs.phraseIndex[first], toks)
	}
	// Candidates per first token sorted by (token count, joined length) desc
	// so the scanner can stop at the first hit.
	for first, cands := range rs.phraseIndex {
		sort.SliceStable(cands, func(i, j int) bool {
			if len(cands[i]) != len(cands[j]) {
				return len(cands[i]) > len(cands[j])
			}
			return len(strings.Join(cands[i], " ")) > len(strings.Join(cands[j], " "))
		})
		rs.phraseIndex[first] = cands
	}

	if rs.similarity.MinJaccard <= 0 {
		rs.similarity.MinJaccard = 0.40
	}
	if rs.similarity.MinLevenshteinRatio <= 0 {
		rs.similarity.MinLevenshteinRatio = 0.78
	}

	return rs
}

// Brands returns brand patterns sorted longest-pattern-first.
func (r *RuleSet) Brands() []BrandPattern { return r.brands }

// PhraseCandidates returns the set phrases beginning with the given token,
// longest first.
func (r *RuleSet) PhraseCandidates(firstToken string) [][]string {
	return r.phraseIndex[firstToken]
}

// IsColorTerm reports whether tok is a parallel color word (gold, blue, ...).
func (r *RuleSet) IsColorTerm(tok string) bool {
	_, ok := r.colorTerms[tok]
	return ok
}

// IsPatternTerm reports whether tok is a parallel pattern word
// (refractor, wave, disco, ...).
func (r *RuleSet) IsPatternTerm(tok string) bool {
	_, ok := r.patternTerms[tok]
	return ok
}

// IsStopword reports whether tok is excluded from player-token extraction.
func (r *RuleSet) IsStopword(tok string) bool {
	_, ok := r.stopwords[tok]
	return ok
}

// InsertTerms returns the insert keyword list.
func (r *RuleSet) InsertTerms() []string { return r.insertTerms }

// PromoTerms returns the promo keyword list.
func (r *RuleSet) PromoTerms() []string { return r.promoTerms }

// OddballTerms returns the oddball keyword list.
func (r *RuleSet) OddballTerms() []string { return r.oddballTerms }

// HardExcludeTerms returns keywords that reject a comp outright unless the
// subject declares the same keyword.
func (r *RuleSet) HardExcludeTerms() []string { return r.hardExclude }

// SoftParallelTerms returns the color/foil words that distinguish decorated
// parallels from base cards.
func (r *RuleSet) SoftParallelTerms() []string { return r.softParallel }

// DamageTerms returns condition keywords that disqualify a comp.
func (r *RuleSet) DamageTerms() []string { return r.damageTerms }

// LotTerms returns multi-item listing keywords.
func (r *RuleSet) LotTerms() []string { return r.lotTerms }

// GradedTerms returns grading-company markers.
func (r *RuleSet) GradedTerms() []string { return r.gradedTerms }

// NegativeTerms returns the query exclusion words (without leading dash).
func (r *RuleSet) NegativeTerms() []string { return r.negative }

// Similarity returns the fuzzy-comparison thresholds.
func (r *RuleSet) Similarity() Similarity { return r.similarity }

// canonicalPhrase lowercases and normalizes separators for phrase matching.
func canonicalPhrase(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(c rune) rune {
		switch c {
		case '-', '_', '/':
			return ' '
		}
		return c
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			out[it] = struct{}{}
		}
	}
	return out
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}
