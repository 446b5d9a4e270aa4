/*
coverage.go - Catalog coverage statistics

PURPOSE:
  Cross-references an external entity catalog against resolved rules as of
  a date: how many known entities have an applicable rule, how many are
  gaps. Drives the "fill the gaps" workflow via MissingKeys.

CONCURRENCY:
  Per-entity resolutions are independent, so they fan out across a bounded
  worker pool (errgroup) and merge by summation. The computation is
  read-only and honors caller cancellation; an aborted request leaves
  nothing behind.

DEGRADED OUTCOMES:
  ErrNoRuleFound and ErrPriceSourceUnavailable per entity count the entity
  as missing instead of failing the whole computation. Only infrastructure
  errors (storage down) propagate.

SEE ALSO:
  - resolver.go: The per-entity resolution being fanned out
*/
package generic

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// EntityResolver is the per-entity resolution coverage fans out over.
// *ScopeResolver satisfies it; domain services wrap it to also require a
// price for percent-of-price rules.
type EntityResolver interface {
	Resolve(ctx context.Context, key EntityKey, asOf TimePoint) (*RuleEntry, error)
}

// CoverageSnapshot is derived and read-only, never persisted.
type CoverageSnapshot struct {
	Total       int
	Covered     int
	Missing     int
	CoveragePct decimal.Decimal // in [0,100]; 0 when Total is 0
}

// CoverageCalculator computes snapshots over an entity catalog.
type CoverageCalculator struct {
	Resolver EntityResolver

	// Workers bounds the resolution fan-out. Zero means 8.
	Workers int
}

func (c *CoverageCalculator) workers() int {
	if c.Workers <= 0 {
		return 8
	}
	return c.Workers
}

// Coverage resolves every catalog key as of the date and counts outcomes.
func (c *CoverageCalculator) Coverage(ctx context.Context, keys []EntityKey, asOf TimePoint) (CoverageSnapshot, error) {
	covered, err := c.resolveAll(ctx, keys, asOf)
	if err != nil {
		return CoverageSnapshot{}, err
	}

	snap := CoverageSnapshot{Total: len(keys), CoveragePct: decimal.Zero}
	for _, ok := range covered {
		if ok {
			snap.Covered++
		}
	}
	snap.Missing = snap.Total - snap.Covered
	if snap.Total > 0 {
		snap.CoveragePct = decimal.NewFromInt(int64(snap.Covered)).
			Div(decimal.NewFromInt(int64(snap.Total))).
			Mul(decimal.NewFromInt(100))
	}
	return snap, nil
}

// MissingKeys returns up to limit uncovered keys, in catalog order.
// limit <= 0 means no bound.
func (c *CoverageCalculator) MissingKeys(ctx context.Context, keys []EntityKey, asOf TimePoint, limit int) ([]EntityKey, error) {
	covered, err := c.resolveAll(ctx, keys, asOf)
	if err != nil {
		return nil, err
	}

	missing := make([]EntityKey, 0)
	for i, key := range keys {
		if covered[i] {
			continue
		}
		missing = append(missing, key)
		if limit > 0 && len(missing) >= limit {
			break
		}
	}
	return missing, nil
}

// resolveAll fans out one resolution per key. Results land in a
// per-index slice, so no ordering guarantee is needed across entities.
func (c *CoverageCalculator) resolveAll(ctx context.Context, keys []EntityKey, asOf TimePoint) ([]bool, error) {
	covered := make([]bool, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			_, err := c.Resolver.Resolve(ctx, key, asOf)
			switch {
			case err == nil:
				covered[i] = true
				return nil
			case IsDegraded(err):
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return covered, nil
}
