package signature

import (
	"github.com/agext/levenshtein"

	"github.com/monterey-cards/repricer/internal/rules"
)

// SetsMatch fuzzily compares two set-name token lists: Jaccard overlap above
// the rule-table threshold matches, and failing that any single token pair
// within the Levenshtein-ratio threshold matches (catches "emotion" vs
// "e motion" survivors and marketplace typos).
func SetsMatch(subject, comp []string, sim rules.Similarity) bool {
	if len(subject) == 0 || len(comp) == 0 {
		return false
	}

	subj := toSet(subject)
	cmp := toSet(comp)

	inter := 0
	for tok := range subj {
		if _, ok := cmp[tok]; ok {
			inter++
		}
	}
	union := len(subj) + len(cmp) - inter
	if union > 0 && float64(inter)/float64(union) >= sim.MinJaccard {
		return true
	}

	for s := range subj {
		for c := range cmp {
			if levenshtein.Similarity(s, c, nil) >= sim.MinLevenshteinRatio {
				return true
			}
		}
	}
	return false
}
