// Package match decides, per retrieved comp, whether it is an admissible
// price input for a subject listing. The decision chain short-circuits on the
// first failing stage so every rejection is attributable to exactly one rule.
package match

import (
	"fmt"
	"strings"

	"github.com/monterey-cards/repricer/internal/model"
	"github.com/monterey-cards/repricer/internal/normalize"
	"github.com/monterey-cards/repricer/internal/rules"
	"github.com/monterey-cards/repricer/internal/signature"
)

// Stage names the rule that produced a rejection.
type Stage string

const (
	StageSerial    Stage = "serial"
	StageSignature Stage = "signature"
	StageHybrid    Stage = "hybrid"
)

// Verdict is the outcome of judging one comp. Stage and Reason are only set
// on rejections.
type Verdict struct {
	Admissible bool
	Stage      Stage
	Reason     string
}

func admit() Verdict {
	return Verdict{Admissible: true}
}

func reject(stage Stage, format string, args ...any) Verdict {
	return Verdict{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Thresholds tunes the price-scaled hybrid stage.
type Thresholds struct {
	// HybridMinPrice is the comp price below which the hybrid stage is
	// skipped entirely. Cheap comps are admitted on signature evidence
	// alone to keep sample sizes up.
	HybridMinPrice float64
	// BaseCeiling rejects comps above this price when the subject is a
	// plain base card.
	BaseCeiling float64
	// ChromeBaseCeiling rejects comps above this price when the subject is
	// chrome but carries no color decoration.
	ChromeBaseCeiling float64
	// GlobalCeiling caps every comp regardless of subject tier.
	GlobalCeiling float64
}

// Matcher judges comps against a subject signature using injected rule
// tables.
type Matcher struct {
	rules      *rules.RuleSet
	extractor  *signature.Extractor
	thresholds Thresholds
}

// NewMatcher creates a Matcher.
func NewMatcher(rs *rules.RuleSet, ex *signature.Extractor, th Thresholds) *Matcher {
	return &Matcher{rules: rs, extractor: ex, thresholds: th}
}

// Judge runs the full decision chain for one comp.
func (m *Matcher) Judge(subject signature.Signature, subjectTitle, compTitle string, compPrice float64) Verdict {
	subjNorm := normalize.Title(subjectTitle)
	compNorm := normalize.Title(compTitle)

	if v := m.judgeSerial(subjectTitle, compTitle); !v.Admissible {
		return v
	}
	if !subject.Empty() {
		if v := m.judgeSignature(subject, compNorm); !v.Admissible {
			return v
		}
	}
	if compPrice >= m.thresholds.HybridMinPrice {
		if v := m.judgeHybrid(subjNorm, compNorm, compPrice); !v.Admissible {
			return v
		}
	}
	return admit()
}

// FilterComps partitions comps into admitted records and rejections.
func (m *Matcher) FilterComps(subject signature.Signature, subjectTitle string, comps []model.Comp) (admitted []model.Comp, rejected []Rejection) {
	for _, c := range comps {
		v := m.Judge(subject, subjectTitle, c.Title, c.TotalPrice)
		if v.Admissible {
			admitted = append(admitted, c)
			continue
		}
		rejected = append(rejected, Rejection{Comp: c, Verdict: v})
	}
	return admitted, rejected
}

// Rejection pairs a filtered-out comp with the verdict that removed it.
type Rejection struct {
	Comp    model.Comp
	Verdict Verdict
}

// judgeSerial requires the comp to carry the subject's exact print-run
// fragment. A subject with no fragment constrains nothing here; unserialized
// subjects are kept honest by the signature stage instead.
func (m *Matcher) judgeSerial(subjectTitle, compTitle string) Verdict {
	frag, ok := signature.SerialFragment(subjectTitle)
	if !ok {
		return admit()
	}
	compFrag, ok := signature.SerialFragment(compTitle)
	if !ok {
		return reject(StageSerial, "subject is serialized %s, comp is not", frag)
	}
	if compFrag != frag {
		return reject(StageSerial, "serial mismatch: subject %s, comp %s", frag, compFrag)
	}
	return admit()
}

func (m *Matcher) judgeSignature(subject signature.Signature, compNorm string) Verdict {
	comp := m.extractor.Extract(compNorm)

	if subject.Year != 0 && comp.Year != 0 && subject.Year != comp.Year {
		return reject(StageSignature, "year mismatch: %d vs %d", subject.Year, comp.Year)
	}
	if subject.CardNumber != "" && comp.CardNumber != "" && subject.CardNumber != comp.CardNumber {
		return reject(StageSignature, "card number mismatch: #%s vs #%s", subject.CardNumber, comp.CardNumber)
	}
	if subject.BrandFamily != "" && comp.BrandFamily != "" && subject.BrandFamily != comp.BrandFamily {
		return reject(StageSignature, "brand mismatch: %q vs %q", subject.BrandFamily, comp.BrandFamily)
	}
	if subject.SetPhrase != "" && !m.setPhraseMatches(subject.SetPhrase, comp.SetPhrase) {
		return reject(StageSignature, "set phrase %q not found in comp", subject.SetPhrase)
	}
	if missing := missingParallel(subject, comp); missing != "" {
		return reject(StageSignature, "comp lacks subject parallel %q", missing)
	}
	if subject.IsInsert != comp.IsInsert {
		return reject(StageSignature, "insert flag mismatch")
	}
	if subject.IsPromo != comp.IsPromo {
		return reject(StageSignature, "promo flag mismatch")
	}
	if subject.IsOddball != comp.IsOddball {
		return reject(StageSignature, "oddball flag mismatch")
	}
	if len(subject.PlayerTokens) > 0 && len(comp.PlayerTokens) > 0 && !tokensIntersect(subject.PlayerTokens, comp.PlayerTokens) {
		return reject(StageSignature, "no shared player token")
	}
	return admit()
}

// setPhraseMatches accepts an exact canonical match or a fuzzy token-set
// match within the rule-table thresholds. A comp with no extracted phrase
// never matches a subject that has one: extraction uses the same table, so a
// phrase literally present in the comp would have been found.
func (m *Matcher) setPhraseMatches(subjectPhrase, compPhrase string) bool {
	if compPhrase == subjectPhrase {
		return true
	}
	if compPhrase == "" {
		return false
	}
	return signature.SetsMatch(
		strings.Fields(subjectPhrase),
		strings.Fields(compPhrase),
		m.rules.Similarity(),
	)
}

// missingParallel returns the first subject parallel term the comp lacks, or
// "". The comp's parallel set must be a superset of the subject's.
func missingParallel(subject, comp signature.Signature) string {
	compSet := map[string]struct{}{}
	for _, t := range comp.Parallels() {
		compSet[t] = struct{}{}
	}
	for _, t := range subject.Parallels() {
		if _, ok := compSet[t]; !ok {
			return t
		}
	}
	return ""
}

func tokensIntersect(a, b []string) bool {
	set := map[string]struct{}{}
	for _, t := range a {
		set[strip(t)] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[strip(t)]; ok {
			return true
		}
	}
	return false
}

// strip drops the glued generational suffix so "griffey-jr" and "griffey"
// intersect.
func strip(tok string) string {
	if i := strings.IndexByte(tok, '-'); i > 0 {
		return tok[:i]
	}
	return tok
}

// judgeHybrid runs the price-scaled safety checks for expensive comps.
func (m *Matcher) judgeHybrid(subjNorm, compNorm string, compPrice float64) Verdict {
	// Hard-exclude keywords reject outright unless the subject declares the
	// same keyword (two refractors may compare).
	for _, term := range m.rules.HardExcludeTerms() {
		if strings.Contains(compNorm, term) && !strings.Contains(subjNorm, term) {
			return reject(StageHybrid, "hard-exclude term %q", term)
		}
	}

	subjChrome := strings.Contains(subjNorm, "chrome")
	compChrome := strings.Contains(compNorm, "chrome")
	if subjChrome && !compChrome {
		return reject(StageHybrid, "subject is chrome, comp is not")
	}
	if !subjChrome && compChrome {
		return reject(StageHybrid, "comp is chrome, subject is not")
	}

	// Soft color words on the comp must all be declared by the subject: a
	// plain subject never compares against a gold parallel.
	for _, term := range m.rules.SoftParallelTerms() {
		if strings.Contains(compNorm, term) && !strings.Contains(subjNorm, term) {
			return reject(StageHybrid, "comp carries undeclared parallel %q", term)
		}
	}

	ceiling := m.subjectCeiling(subjNorm)
	if compPrice > ceiling {
		return reject(StageHybrid, "price %.2f above ceiling %.2f", compPrice, ceiling)
	}
	return admit()
}

// subjectCeiling picks the price-sanity cap for the subject's tier. Decorated
// subjects get the global ceiling; undecorated chrome and plain base cards
// get progressively lower caps.
func (m *Matcher) subjectCeiling(subjNorm string) float64 {
	decorated := false
	for _, term := range m.rules.SoftParallelTerms() {
		if strings.Contains(subjNorm, term) {
			decorated = true
			break
		}
	}
	for _, term := range m.rules.HardExcludeTerms() {
		if strings.Contains(subjNorm, term) {
			decorated = true
			break
		}
	}
	switch {
	case decorated:
		return m.thresholds.GlobalCeiling
	case strings.Contains(subjNorm, "chrome"):
		return m.thresholds.ChromeBaseCeiling
	default:
		return m.thresholds.BaseCeiling
	}
}
