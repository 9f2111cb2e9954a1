package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/monterey-cards/repricer/internal/cache"
	"github.com/monterey-cards/repricer/internal/comps"
	"github.com/monterey-cards/repricer/internal/match"
	"github.com/monterey-cards/repricer/internal/pricer"
	"github.com/monterey-cards/repricer/internal/pricing"
	"github.com/monterey-cards/repricer/internal/query"
	"github.com/monterey-cards/repricer/internal/rules"
	"github.com/monterey-cards/repricer/internal/signature"
	"github.com/monterey-cards/repricer/internal/store"
	"github.com/monterey-cards/repricer/pkg/browse"
	"github.com/monterey-cards/repricer/pkg/finding"
)

// pricerEnv wires the pipeline from config. Close releases the store.
type pricerEnv struct {
	Rules     *rules.RuleSet
	Extractor *signature.Extractor
	Builder   *query.Builder
	Matcher   *match.Matcher
	Store     store.Store
	Cache     *cache.ActiveComps
	Pricer    *pricer.Pricer
}

func (e *pricerEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// initEnv builds the full pipeline. At least one search backend credential is
// required; a missing credential is an unrecoverable precondition failure,
// not something retrieval masks later.
func initEnv(ctx context.Context) (*pricerEnv, error) {
	env, err := initOfflineEnv(ctx)
	if err != nil {
		return nil, err
	}

	filter := comps.NewFilter(env.Rules, cfg.Retrieval.PriceFloor, cfg.Retrieval.PriceCap)

	var backends []comps.Backend
	if cfg.Browse.Token != "" {
		bc, err := browse.NewClient(cfg.Browse.Token, cfg.Browse.MarketplaceID,
			browse.WithBaseURL(cfg.Browse.BaseURL),
			browse.WithRateLimit(cfg.Browse.RatePerSec),
			browse.WithTimeout(time.Duration(cfg.Browse.TimeoutSecs)*time.Second),
		)
		if err != nil {
			return nil, eris.Wrap(err, "init browse client")
		}
		backends = append(backends, comps.NewBrowseBackend(bc, filter))
	}
	if cfg.Finding.AppID != "" {
		fc, err := finding.NewClient(cfg.Finding.AppID,
			finding.WithBaseURL(cfg.Finding.BaseURL),
			finding.WithRateLimit(cfg.Finding.RatePerSec),
			finding.WithTimeout(time.Duration(cfg.Finding.TimeoutSecs)*time.Second),
		)
		if err != nil {
			return nil, eris.Wrap(err, "init finding client")
		}
		backends = append(backends, comps.NewFindingBackend(fc, filter))
	}
	if len(backends) == 0 {
		return nil, eris.New("no search backend configured: set REPRICER_BROWSE_TOKEN or REPRICER_FINDING_APP_ID")
	}

	retriever := comps.NewRetriever(backends, comps.Options{
		ActiveLimit: cfg.Retrieval.ActiveLimit,
		SoldLimit:   cfg.Retrieval.SoldLimit,
		MaxQueries:  cfg.Retrieval.MaxQueries,
		Concurrency: cfg.Retrieval.Concurrency,
	})

	env.Pricer = pricer.New(pricer.Deps{
		Extractor: env.Extractor,
		Builder:   env.Builder,
		Retriever: retriever,
		Matcher:   env.Matcher,
		Engine: pricing.NewEngine(pricing.Params{
			LowestK:        cfg.Pricing.LowestK,
			PriceFloor:     cfg.Pricing.PriceFloor,
			MaxDropPct:     cfg.Pricing.MaxDropPct,
			HighPriceAt:    cfg.Pricing.HighPriceAt,
			HighPriceFloor: cfg.Pricing.HighPriceFloor,
		}),
		Enhance: pricing.EnhanceParams{
			Enabled:             cfg.Pricing.Enhancements.Enabled,
			VelocityHigh:        cfg.Pricing.Enhancements.VelocityHigh,
			VelocityMedium:      cfg.Pricing.Enhancements.VelocityMedium,
			VelocityBoostHigh:   cfg.Pricing.Enhancements.VelocityBoostHigh,
			VelocityBoostMedium: cfg.Pricing.Enhancements.VelocityBoostMedium,
			OversupplyAt:        cfg.Pricing.Enhancements.OversupplyAt,
			OversupplyDiscount:  cfg.Pricing.Enhancements.OversupplyDiscount,
			RareSupplyAt:        cfg.Pricing.Enhancements.RareSupplyAt,
			RareBoost:           cfg.Pricing.Enhancements.RareBoost,
			MaxSwingPct:         cfg.Pricing.Enhancements.MaxSwingPct,
		},
		Cache:            env.Cache,
		Store:            env.Store,
		PercentThreshold: cfg.Pricing.PercentThreshold,
	})
	return env, nil
}

// initOfflineEnv builds everything that needs no backend credentials: rules,
// extractor, query builder, matcher, store and cache. Used directly by the
// debug and cache commands.
func initOfflineEnv(ctx context.Context) (*pricerEnv, error) {
	rs, err := rules.Load(cfg.Rules.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "load rule tables")
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	extractor := signature.NewExtractor(rs)
	env := &pricerEnv{
		Rules:     rs,
		Extractor: extractor,
		Builder:   query.NewBuilder(extractor, rs),
		Matcher: match.NewMatcher(rs, extractor, match.Thresholds{
			HybridMinPrice:    cfg.Pricing.HybridMinPrice,
			BaseCeiling:       cfg.Pricing.BaseCeiling,
			ChromeBaseCeiling: cfg.Pricing.ChromeBaseCeiling,
			GlobalCeiling:     cfg.Pricing.GlobalCeiling,
		}),
		Store: st,
		Cache: cache.New(st, time.Duration(cfg.Cache.TTLMinutes)*time.Minute, cfg.Cache.MaxEntries),
	}
	return env, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "open %s store", cfg.Store.Driver)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
