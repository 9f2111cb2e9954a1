package comps

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monterey-cards/repricer/internal/model"
)

// Options bounds one retrieval fan-out.
type Options struct {
	ActiveLimit int
	SoldLimit   int
	MaxQueries  int
	Concurrency int
}

// Retriever fans queries out across backends and merges the results.
type Retriever struct {
	backends []Backend
	opts     Options
}

// NewRetriever builds a Retriever over the given backends.
func NewRetriever(backends []Backend, opts Options) *Retriever {
	if opts.ActiveLimit <= 0 {
		opts.ActiveLimit = 15
	}
	if opts.SoldLimit <= 0 {
		opts.SoldLimit = 5
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 4
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Retriever{backends: backends, opts: opts}
}

// Retrieve runs every (query, backend) pair concurrently and returns merged
// active and sold comp pools. A failed call degrades to zero comps from that
// pair; retrieval as a whole only fails on context cancellation.
func (r *Retriever) Retrieve(ctx context.Context, queries []string) (active, sold []model.Comp, err error) {
	if len(queries) > r.opts.MaxQueries {
		queries = queries[:r.opts.MaxQueries]
	}

	var (
		mu         sync.Mutex
		activeRaw  []model.Comp
		soldRaw    []model.Comp
		seenActive = map[model.CompKey]struct{}{}
		seenSold   = map[model.CompKey]struct{}{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, q := range queries {
		for _, be := range r.backends {
			q, be := q, be
			g.Go(func() error {
				comps, ferr := be.FetchActive(gctx, q, r.opts.ActiveLimit)
				if ferr != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					zap.L().Warn("active fetch failed",
						zap.String("backend", be.Name()),
						zap.String("query", q),
						zap.Error(ferr),
					)
					return nil
				}
				mu.Lock()
				activeRaw = dedupeInto(activeRaw, seenActive, comps)
				mu.Unlock()
				return nil
			})
			g.Go(func() error {
				comps, ferr := be.FetchSold(gctx, q, r.opts.SoldLimit)
				if ferr != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					zap.L().Warn("sold fetch failed",
						zap.String("backend", be.Name()),
						zap.String("query", q),
						zap.Error(ferr),
					)
					return nil
				}
				mu.Lock()
				soldRaw = dedupeInto(soldRaw, seenSold, comps)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return activeRaw, soldRaw, nil
}

// dedupeInto appends comps not already present by key. The same physical
// listing surfaced by two queries or two backends collapses to one entry.
func dedupeInto(dst []model.Comp, seen map[model.CompKey]struct{}, comps []model.Comp) []model.Comp {
	for _, c := range comps {
		k := c.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		dst = append(dst, c)
	}
	return dst
}
