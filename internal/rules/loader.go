package rules

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Load reads the rule tables from dir and builds an immutable RuleSet.
// Each file is optional and has its own shape: brand_families.yaml is a bare
// pattern/canonical list, set_phrases.yaml a bare phrase-to-weight map and
// classification.yaml keyed sections. A missing file falls back to the
// compiled-in defaults below, so a fresh checkout prices sensibly before any
// mining has run; a malformed file is an error (silently mispricing on a
// typo'd table is worse than failing).
func Load(dir string) (*RuleSet, error) {
	t := defaultTables()

	if raw, ok, err := readRuleFile(dir, "brand_families.yaml"); err != nil {
		return nil, err
	} else if ok {
		var brands []BrandPattern
		if err := yaml.Unmarshal(raw, &brands); err != nil {
			return nil, eris.Wrap(err, "rules: parse brand_families.yaml")
		}
		if len(brands) > 0 {
			t.Brands = brands
		}
	}

	if raw, ok, err := readRuleFile(dir, "set_phrases.yaml"); err != nil {
		return nil, err
	} else if ok {
		var phrases map[string]float64
		if err := yaml.Unmarshal(raw, &phrases); err != nil {
			return nil, eris.Wrap(err, "rules: parse set_phrases.yaml")
		}
		if len(phrases) > 0 {
			t.SetPhrases = phrases
		}
	}

	if raw, ok, err := readRuleFile(dir, "classification.yaml"); err != nil {
		return nil, err
	} else if ok {
		var overlay tables
		if err := yaml.Unmarshal(raw, &overlay); err != nil {
			return nil, eris.Wrap(err, "rules: parse classification.yaml")
		}
		merge(&t, overlay)
	}

	rs := build(t)
	zap.L().Info("rules: rule set ready",
		zap.Int("brand_patterns", len(rs.brands)),
		zap.Int("phrase_first_tokens", len(rs.phraseIndex)),
	)
	return rs, nil
}

// Default builds the compiled-in rule set without touching disk.
func Default() *RuleSet {
	return build(defaultTables())
}

func readRuleFile(dir, name string) ([]byte, bool, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "rules: read %s", name)
	}
	zap.L().Debug("rules: loaded table file", zap.String("file", name))
	return raw, true, nil
}

// merge overlays non-empty sections of src onto dst. Lists replace rather
// than append: a mined table is authoritative for its section.
func merge(dst *tables, src tables) {
	if len(src.Brands) > 0 {
		dst.Brands = src.Brands
	}
	if len(src.SetPhrases) > 0 {
		dst.SetPhrases = src.SetPhrases
	}
	if len(src.ParallelColorTerms) > 0 {
		dst.ParallelColorTerms = src.ParallelColorTerms
	}
	if len(src.ParallelPatternTerms) > 0 {
		dst.ParallelPatternTerms = src.ParallelPatternTerms
	}
	if len(src.InsertTerms) > 0 {
		dst.InsertTerms = src.InsertTerms
	}
	if len(src.PromoTerms) > 0 {
		dst.PromoTerms = src.PromoTerms
	}
	if len(src.OddballTerms) > 0 {
		dst.OddballTerms = src.OddballTerms
	}
	if len(src.HardExcludeTerms) > 0 {
		dst.HardExcludeTerms = src.HardExcludeTerms
	}
	if len(src.SoftParallelTerms) > 0 {
		dst.SoftParallelTerms = src.SoftParallelTerms
	}
	if len(src.DamageTerms) > 0 {
		dst.DamageTerms = src.DamageTerms
	}
	if len(src.LotTerms) > 0 {
		dst.LotTerms = src.LotTerms
	}
	if len(src.GradedTerms) > 0 {
		dst.GradedTerms = src.GradedTerms
	}
	if len(src.NegativeTerms) > 0 {
		dst.NegativeTerms = src.NegativeTerms
	}
	if len(src.Stopwords) > 0 {
		dst.Stopwords = src.Stopwords
	}
	if src.Similarity.MinJaccard > 0 {
		dst.Similarity.MinJaccard = src.Similarity.MinJaccard
	}
	if src.Similarity.MinLevenshteinRatio > 0 {
		dst.Similarity.MinLevenshteinRatio = src.Similarity.MinLevenshteinRatio
	}
}

func defaultTables() tables {
	return tables{
		Brands: []BrandPattern{
			{Pattern: "topps chrome", Canonical: "topps chrome"},
			{Pattern: "topps", Canonical: "topps"},
			{Pattern: "bowman chrome", Canonical: "bowman chrome"},
			{Pattern: "bowman", Canonical: "bowman"},
			{Pattern: "panini prizm", Canonical: "panini prizm"},
			{Pattern: "prizm", Canonical: "panini prizm"},
			{Pattern: "panini", Canonical: "panini"},
			{Pattern: "donruss optic", Canonical: "donruss optic"},
			{Pattern: "donruss", Canonical: "donruss"},
			{Pattern: "upper deck", Canonical: "upper deck"},
			{Pattern: "fleer ultra", Canonical: "fleer ultra"},
			{Pattern: "fleer", Canonical: "fleer"},
			{Pattern: "skybox emotion", Canonical: "skybox emotion"},
			{Pattern: "skybox", Canonical: "skybox"},
			{Pattern: "stadium club", Canonical: "stadium club"},
			{Pattern: "score", Canonical: "score"},
			{Pattern: "leaf", Canonical: "leaf"},
			{Pattern: "select", Canonical: "select"},
			{Pattern: "mosaic", Canonical: "mosaic"},
		},
		SetPhrases: map[string]float64{
			"topps chrome":          1,
			"topps heritage":        1,
			"topps stadium club":    1,
			"bowman chrome":         1,
			"bowman draft":          1,
			"panini prizm":          1,
			"donruss optic":         1,
			"upper deck":            1,
			"fleer ultra":           1,
			"skybox emotion":        1,
			"skybox premium":        1,
			"topps chrome platinum": 1,
		},
		ParallelColorTerms: []string{
			"gold", "black", "blue", "green", "red", "silver", "purple",
			"orange", "pink", "lime", "aqua", "teal", "rainbow",
		},
		ParallelPatternTerms: []string{
			"refractor", "xfractor", "prizm", "prism", "wave", "disco",
			"reactive", "mojo", "pulsar", "atomic", "cracked ice", "sparkle",
			"holo", "foil", "shimmer", "velocity", "hyper",
		},
		InsertTerms: []string{
			"insert", "rookie premiere", "all star", "highlights",
			"hall of fame", "award winner", "season leaders",
		},
		PromoTerms: []string{
			"promo", "promotional", "sample", "redemption", "national convention",
		},
		OddballTerms: []string{
			"oddball", "food issue", "broder", "police", "team issue",
		},
		HardExcludeTerms: []string{
			"refractor", "xfractor", "pulsar", "mojo", "wave", "cracked ice",
			"atomic", "prism", "prizm", "serial", "#/", "/", "foilboard",
			"psa", "bgs", "sgc", "graded", "lot", "set of", "bundle", "collection",
		},
		SoftParallelTerms: []string{
			"gold", "black", "blue", "green", "red", "silver", "rainbow",
			"holo", "foil", "purple", "orange", "pink", "lime", "aqua", "teal",
		},
		DamageTerms: []string{
			"poor", "fair", "filler", "crease", "creased", "damage", "damaged",
			"bent", "writing", "pen", "marker", "tape", "miscut", "off-center",
		},
		LotTerms: []string{
			"lot of", "lots", "complete set", "factory set", "team set",
			"set of", "sealed box", "hobby box", "blaster box", "mega box",
			"hanger box", "value box", "cello box", "rack pack", "value pack",
			"fat pack", "jumbo box", "case break", "player break", "team break",
			"group break", "box break",
		},
		GradedTerms: []string{
			"psa", "bgs", "sgc", "cgc", "csg", "gma", "bccg",
		},
		NegativeTerms: []string{
			"lot", "lots", "factory", "break", "case", "sealed", "bundle",
		},
		Stopwords: []string{
			"card", "cards", "rookie", "rc", "base", "mint", "nm", "nrmt",
			"sp", "ssp", "hot", "rare", "new", "vintage", "the", "and", "of",
		},
		Similarity: Similarity{MinJaccard: 0.40, MinLevenshteinRatio: 0.78},
	}
}
