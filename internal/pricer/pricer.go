// Package pricer orchestrates the full repricing pipeline for one listing:
// signature, queries, retrieval, strict filtering, pricing and adjustment.
package pricer

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/monterey-cards/repricer/internal/cache"
	"github.com/monterey-cards/repricer/internal/comps"
	"github.com/monterey-cards/repricer/internal/match"
	"github.com/monterey-cards/repricer/internal/model"
	"github.com/monterey-cards/repricer/internal/pricing"
	"github.com/monterey-cards/repricer/internal/query"
	"github.com/monterey-cards/repricer/internal/signature"
	"github.com/monterey-cards/repricer/internal/store"
)

// Pricer runs the pipeline. Concurrent calls for distinct titles are safe;
// calls for the same title are serialized so the cache keeps last-writer-wins
// semantics without interleaved retrievals.
type Pricer struct {
	extractor *signature.Extractor
	builder   *query.Builder
	retriever *comps.Retriever
	matcher   *match.Matcher
	engine    *pricing.Engine
	enhance   pricing.EnhanceParams
	cache     *cache.ActiveComps
	store     store.Store

	// percentThreshold suppresses suggestions within this percentage of
	// the current price.
	percentThreshold float64

	locks [lockShards]sync.Mutex
}

// lockShards bounds the title-lock pool; long-running serve processes see an
// unbounded stream of distinct titles, so locks are shared by hash rather
// than allocated per title. Two titles in the same shard serialize, which is
// harmless.
const lockShards = 256

// Deps bundles the pipeline stages.
type Deps struct {
	Extractor *signature.Extractor
	Builder   *query.Builder
	Retriever *comps.Retriever
	Matcher   *match.Matcher
	Engine    *pricing.Engine
	Enhance   pricing.EnhanceParams
	Cache     *cache.ActiveComps
	// Store persists results when set; persistence failures are logged,
	// never fatal.
	Store            store.Store
	PercentThreshold float64
}

// New creates a Pricer.
func New(d Deps) *Pricer {
	return &Pricer{
		extractor:        d.Extractor,
		builder:          d.Builder,
		retriever:        d.Retriever,
		matcher:          d.Matcher,
		engine:           d.Engine,
		enhance:          d.Enhance,
		cache:            d.Cache,
		store:            d.Store,
		percentThreshold: d.PercentThreshold,
	}
}

// Reprice prices one listing. It never returns an error for malformed or
// adversarial titles; the worst case is a no-data result. Context
// cancellation surfaces as a failed result.
func (p *Pricer) Reprice(ctx context.Context, l model.Listing) model.RepriceResult {
	start := time.Now()

	lock := p.titleLock(l.Title)
	lock.Lock()
	defer lock.Unlock()

	res := model.RepriceResult{Listing: l}

	sig := p.extractor.Extract(l.Title)

	activePrices, soldPrices, fromCache, err := p.gather(ctx, sig, l.Title)
	if err != nil {
		res.Status = model.RepriceStatusFailed
		res.Error = err.Error()
		res.Elapsed = time.Since(start)
		return res
	}
	res.FromCache = fromCache
	res.ActiveComps = len(activePrices)
	res.SoldComps = len(soldPrices)

	res.Suggestion = p.engine.Price(activePrices, soldPrices, l.CurrentPrice)

	if !res.Suggestion.NoData() {
		adjusted, reason := pricing.Enhance(
			*res.Suggestion.SuggestedPrice, len(soldPrices), len(activePrices), p.enhance,
		)
		if reason != "" {
			res.Suggestion.SuggestedPrice = &adjusted
			if res.Suggestion.Note != "" {
				res.Suggestion.Note += "; "
			}
			res.Suggestion.Note += reason
		}
	}

	res.Status = p.classify(l, res.Suggestion)
	res.Elapsed = time.Since(start)

	if p.store != nil {
		if err := p.store.SaveResult(ctx, res); err != nil {
			zap.L().Warn("result persistence failed", zap.String("title", l.Title), zap.Error(err))
		}
	}
	return res
}

// gather returns the filtered active and sold price lists, consulting the
// cache first. A cache hit skips retrieval entirely; sold evidence is only
// collected on a live retrieval.
func (p *Pricer) gather(ctx context.Context, sig signature.Signature, title string) (active, sold []float64, fromCache bool, err error) {
	if p.cache != nil {
		if prices, ok := p.cache.Get(ctx, title); ok {
			return prices, nil, true, nil
		}
	}

	queries := p.builder.Build(title)
	rawActive, rawSold, err := p.retriever.Retrieve(ctx, queries)
	if err != nil {
		return nil, nil, false, err
	}

	admittedActive, rejActive := p.matcher.FilterComps(sig, title, rawActive)
	admittedSold, rejSold := p.matcher.FilterComps(sig, title, rawSold)
	zap.L().Debug("comps filtered",
		zap.String("title", title),
		zap.Int("active_in", len(rawActive)),
		zap.Int("active_kept", len(admittedActive)),
		zap.Int("active_rejected", len(rejActive)),
		zap.Int("sold_in", len(rawSold)),
		zap.Int("sold_kept", len(admittedSold)),
		zap.Int("sold_rejected", len(rejSold)),
	)

	active = prices(admittedActive)
	sold = prices(admittedSold)

	if p.cache != nil {
		p.cache.Put(ctx, title, active)
	}
	return active, sold, false, nil
}

func (p *Pricer) classify(l model.Listing, s model.PriceSuggestion) model.RepriceStatus {
	if s.NoData() {
		return model.RepriceStatusNoData
	}
	if l.CurrentPrice > 0 && p.percentThreshold > 0 {
		deltaPct := math.Abs(*s.SuggestedPrice-l.CurrentPrice) / l.CurrentPrice * 100
		if deltaPct < p.percentThreshold {
			return model.RepriceStatusUnchanged
		}
	}
	return model.RepriceStatusSuggested
}

func (p *Pricer) titleLock(title string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(title))
	return &p.locks[h.Sum32()%lockShards]
}

func prices(cs []model.Comp) []float64 {
	out := make([]float64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.TotalPrice)
	}
	return out
}
