/*
Package catalog defines the external entity-catalog collaborators.

PURPOSE:
  The engine does not ingest product catalogs or sales reports; those are
  produced elsewhere and consumed here through two narrow interfaces: the
  SKU catalog (what products exist) and the sales feed (what sold, when,
  how many units). Coverage statistics and packaging summaries are computed
  against these.

IMPLEMENTATIONS:
  Static is the in-memory implementation used by tests, dev mode and the
  JSON file loader in cmd/server.
*/
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/tariff-engine/generic"
)

// SKU is one catalog entry. NmID is the marketplace-side product id,
// carried for product-level breakdowns.
type SKU struct {
	InternalSKU     string
	NmID            string
	MarketplaceCode string
}

// Catalog lists the known SKUs.
type Catalog interface {
	SKUs(ctx context.Context) ([]SKU, error)
}

// Sale is one sales-feed record: units of a SKU sold on a date.
type Sale struct {
	SKU   string
	Date  generic.TimePoint
	Units int
}

// SalesFeed reports sales inside a window. Used by packaging summaries to
// know which SKUs actually sold.
type SalesFeed interface {
	SalesIn(ctx context.Context, window generic.Period) ([]Sale, error)
}

// =============================================================================
// STATIC - In-memory catalog and sales feed
// =============================================================================

type Static struct {
	mu    sync.RWMutex
	skus  []SKU
	sales []Sale
}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) AddSKU(sku SKU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skus = append(s.skus, sku)
}

func (s *Static) AddSale(sale Sale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sale)
}

func (s *Static) SKUs(_ context.Context) ([]SKU, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SKU, len(s.skus))
	copy(out, s.skus)
	return out, nil
}

func (s *Static) SalesIn(_ context.Context, window generic.Period) ([]Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Sale
	for _, sale := range s.sales {
		if window.Contains(sale.Date) {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// Keys extracts the entity keys of a SKU list, in catalog order.
func Keys(skus []SKU) []generic.EntityKey {
	keys := make([]generic.EntityKey, len(skus))
	for i, s := range skus {
		keys[i] = generic.EntityKey(s.InternalSKU)
	}
	return keys
}
