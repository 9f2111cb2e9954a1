package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monterey-cards/repricer/internal/model"
	"github.com/monterey-cards/repricer/internal/rules"
	"github.com/monterey-cards/repricer/internal/signature"
)

func newMatcher() (*Matcher, *signature.Extractor) {
	rs := rules.Default()
	ex := signature.NewExtractor(rs)
	m := NewMatcher(rs, ex, Thresholds{
		HybridMinPrice:    10.0,
		BaseCeiling:       2.99,
		ChromeBaseCeiling: 3.99,
		GlobalCeiling:     100.0,
	})
	return m, ex
}

func TestJudge_RefractorSubjectKeepsOnlyRefractorComp(t *testing.T) {
	m, ex := newMatcher()

	subjectTitle := "2021 Topps Chrome Refractor #50 Mike Trout"
	subject := ex.Extract(subjectTitle)

	comps := []model.Comp{
		{Title: "2021 Topps Chrome Refractor #50 Mike Trout", TotalPrice: 12.00},
		{Title: "2021 Topps Chrome #50 Mike Trout base", TotalPrice: 3.50},
		{Title: "2021 Prizm #50 Mike Trout", TotalPrice: 8.00},
	}

	admitted, rejected := m.FilterComps(subject, subjectTitle, comps)
	require.Len(t, admitted, 1)
	assert.InDelta(t, 12.00, admitted[0].TotalPrice, 1e-9)

	require.Len(t, rejected, 2)
	for _, r := range rejected {
		assert.Equal(t, StageSignature, r.Verdict.Stage, "comp %q: %s", r.Comp.Title, r.Verdict.Reason)
	}
}

func TestJudge_SerialSymmetry(t *testing.T) {
	m, ex := newMatcher()

	// A subject with no serial fragment is never rejected by the serial
	// rule alone: a serialized comp passes that stage.
	subjectTitle := "2021 Topps Chrome #50 Mike Trout"
	subject := ex.Extract(subjectTitle)

	v := m.Judge(subject, subjectTitle, "2021 Topps Chrome #50 Mike Trout 12/99", 5.00)
	assert.True(t, v.Admissible, v.Reason)
}

func TestJudge_SerializedSubjectRequiresExactFragment(t *testing.T) {
	m, ex := newMatcher()

	subjectTitle := "2021 Topps Chrome Gold #50 Mike Trout 12/99"
	subject := ex.Extract(subjectTitle)

	v := m.Judge(subject, subjectTitle, "2021 Topps Chrome Gold #50 Mike Trout", 5.00)
	require.False(t, v.Admissible)
	assert.Equal(t, StageSerial, v.Stage)

	v = m.Judge(subject, subjectTitle, "2021 Topps Chrome Gold #50 Mike Trout 13/99", 5.00)
	require.False(t, v.Admissible)
	assert.Equal(t, StageSerial, v.Stage)

	v = m.Judge(subject, subjectTitle, "2021 Topps Chrome Gold #50 Mike Trout #12/99", 5.00)
	assert.True(t, v.Admissible, v.Reason)
}

func TestJudge_EmptySignatureSkipsSignatureStage(t *testing.T) {
	m, _ := newMatcher()

	// Unrecognizable subject: everything passes signature matching, other
	// stages still apply.
	v := m.Judge(signature.Signature{}, "zzz mystery item", "2021 Topps Chrome #50 Trout", 5.00)
	assert.True(t, v.Admissible, v.Reason)
}

func TestJudge_SignatureMismatches(t *testing.T) {
	m, ex := newMatcher()

	subjectTitle := "2021 Topps Chrome #50 Mike Trout"
	subject := ex.Extract(subjectTitle)

	tests := []struct {
		name string
		comp string
	}{
		{"year", "2020 Topps Chrome #50 Mike Trout"},
		{"card number", "2021 Topps Chrome #51 Mike Trout"},
		{"player", "2021 Topps Chrome #50 Shohei Ohtani"},
		{"insert flag", "2021 Topps Chrome All Star #50 Mike Trout"},
	}
	for _, tt := range tests {
		v := m.Judge(subject, subjectTitle, tt.comp, 5.00)
		require.False(t, v.Admissible, tt.name)
		assert.Equal(t, StageSignature, v.Stage, tt.name)
	}
}

func TestJudge_CompWithoutSetPhraseRejected(t *testing.T) {
	m, ex := newMatcher()

	subjectTitle := "2021 Topps Chrome #50 Mike Trout"
	subject := ex.Extract(subjectTitle)

	// The comp carries no recognizable set phrase at all; a subject with one
	// never matches it.
	v := m.Judge(subject, subjectTitle, "2021 #50 Mike Trout", 5.00)
	require.False(t, v.Admissible)
	assert.Equal(t, StageSignature, v.Stage)
	assert.Contains(t, v.Reason, "set phrase")
}

func TestJudge_HybridSkippedForCheapComps(t *testing.T) {
	m, ex := newMatcher()

	subjectTitle := "2021 Topps #50 Mike Trout"
	subject := ex.Extract(subjectTitle)

	// Above the base ceiling but below the hybrid threshold: admitted.
	v := m.Judge(subject, subjectTitle, "2021 Topps #50 Mike Trout", 9.99)
	assert.True(t, v.Admissible, v.Reason)
}

func TestJudge_HybridCeilings(t *testing.T) {
	m, ex := newMatcher()

	// Plain base subject: expensive comps rejected at the base ceiling.
	subjectTitle := "2021 Topps #50 Mike Trout"
	subject := ex.Extract(subjectTitle)
	v := m.Judge(subject, subjectTitle, "2021 Topps #50 Mike Trout", 15.00)
	require.False(t, v.Admissible)
	assert.Equal(t, StageHybrid, v.Stage)

	// Undecorated chrome subject: slightly higher ceiling, still rejected.
	subjectTitle = "2021 Topps Chrome #50 Mike Trout"
	subject = ex.Extract(subjectTitle)
	v = m.Judge(subject, subjectTitle, "2021 Topps Chrome #50 Mike Trout", 15.00)
	require.False(t, v.Admissible)
	assert.Equal(t, StageHybrid, v.Stage)

	// Decorated subject: global ceiling applies.
	subjectTitle = "2021 Topps Chrome Refractor #50 Mike Trout"
	subject = ex.Extract(subjectTitle)
	v = m.Judge(subject, subjectTitle, "2021 Topps Chrome Refractor #50 Mike Trout", 15.00)
	assert.True(t, v.Admissible, v.Reason)
}

func TestJudge_HybridUndeclaredColor(t *testing.T) {
	m, ex := newMatcher()

	subjectTitle := "2021 Topps Chrome Refractor #50 Mike Trout"
	subject := ex.Extract(subjectTitle)

	// Gold is a color term, so the signature superset rule already allows
	// extra comp colors; the hybrid stage catches the undeclared decoration
	// on expensive comps.
	v := m.Judge(subject, subjectTitle, "2021 Topps Chrome Gold Refractor #50 Mike Trout", 40.00)
	require.False(t, v.Admissible)
	assert.Equal(t, StageHybrid, v.Stage)
	assert.Contains(t, v.Reason, "gold")
}

func TestJudge_HybridChromeCompatibility(t *testing.T) {
	m, _ := newMatcher()

	// Empty subject signature, so only the hybrid stage constrains.
	v := m.Judge(signature.Signature{}, "random base item", "random chrome item", 20.00)
	require.False(t, v.Admissible)
	assert.Equal(t, StageHybrid, v.Stage)
}
