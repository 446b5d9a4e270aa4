/*
Package pricing provides named price-series sources.

PURPOSE:
  Percent-of-price rules reference a price source by code ("wb_price",
  "retail", ...). This package holds the registry that resolves codes to
  sources and an in-memory series implementation: a source answers with
  the most recent price on or before the as-of date, and reports
  ErrPriceSourceUnavailable when the series has no answer.

SLOW SOURCES:
  A real source may sit behind a network call. Callers wrap sources with
  generic.WithTimeout so a slow lookup degrades into "unavailable" instead
  of stalling a summary.
*/
package pricing

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/tariff-engine/generic"
)

// Registry resolves price-source codes to sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]generic.PriceSource
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]generic.PriceSource)}
}

func (r *Registry) Register(code string, src generic.PriceSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[code] = src
}

// Source returns the source registered under the code.
func (r *Registry) Source(code string) (generic.PriceSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[code]
	return src, ok
}

// PriceAt resolves through the registry. An unregistered code is a
// PriceLookupError, the same degraded outcome as a missing price.
func (r *Registry) PriceAt(ctx context.Context, code string, key generic.EntityKey, at generic.TimePoint) (generic.Money, error) {
	src, ok := r.Source(code)
	if !ok {
		return generic.Money{}, &generic.PriceLookupError{SourceCode: code, EntityKey: key, At: at}
	}
	return src.PriceAt(ctx, key, at)
}

// =============================================================================
// MEMORY SOURCE - In-memory price series
// =============================================================================

type pricePoint struct {
	At    generic.TimePoint
	Price generic.Money
}

// MemorySource keeps one dated price series per entity.
type MemorySource struct {
	code string

	mu     sync.RWMutex
	series map[generic.EntityKey][]pricePoint
}

func NewMemorySource(code string) *MemorySource {
	return &MemorySource{code: code, series: make(map[generic.EntityKey][]pricePoint)}
}

// SetPrice records a price effective from the given date.
func (m *MemorySource) SetPrice(key generic.EntityKey, at generic.TimePoint, price generic.Money) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pts := append(m.series[key], pricePoint{At: at, Price: price})
	sort.Slice(pts, func(i, j int) bool { return pts[i].At.Before(pts[j].At) })
	m.series[key] = pts
}

// PriceAt returns the most recent price on or before the date.
func (m *MemorySource) PriceAt(ctx context.Context, key generic.EntityKey, at generic.TimePoint) (generic.Money, error) {
	if err := ctx.Err(); err != nil {
		return generic.Money{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *pricePoint
	for i := range m.series[key] {
		p := &m.series[key][i]
		if p.At.After(at) {
			break
		}
		best = p
	}
	if best == nil {
		return generic.Money{}, &generic.PriceLookupError{SourceCode: m.code, EntityKey: key, At: at}
	}
	return best.Price, nil
}
