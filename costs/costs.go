/*
Package costs implements additional-cost entries and their summaries.

PURPOSE:
  An additional cost is a period-bounded amount (a marketing invoice, a
  storage fee) classified by category/subcategory and scoped to the whole
  project, one marketplace, or one product. Summaries prorate each entry
  across the query window and aggregate into a breakdown chosen by the
  caller.

SCOPE VS GROUPING POLICY:
  An entry scoped broader than the requested grouping (a PROJECT-scope
  cost under product grouping, a MARKETPLACE-scope cost under product
  grouping) is shown with its category but empty values for the narrower
  dimensions, flagged General. It appears exactly once, is never spread
  across rows, and is never silently dropped; total_amount includes it
  once. This is the double-counting guard the grouping tests pin down.

SEE ALSO:
  - generic/proration.go: The per-entry math
  - generic/aggregate.go: Group sums with a drift-free total
*/
package costs

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/tariff-engine/generic"
)

// GroupBy selects the breakdown dimension of a summary.
type GroupBy string

const (
	GroupByProject     GroupBy = "project"     // (category, subcategory)
	GroupByMarketplace GroupBy = "marketplace" // (marketplace_code, category, subcategory)
	GroupByProduct     GroupBy = "product"     // (internal_sku, category, subcategory, nm_id)
)

// Row is one breakdown row. Dimension fields not part of the requested
// grouping stay empty.
type Row struct {
	MarketplaceCode string
	InternalSKU     string
	NmID            string
	Category        string
	Subcategory     string

	Amount decimal.Decimal // unrounded; round once at the boundary

	// General marks a broader-scope entry surfaced under a narrower
	// grouping (see the package policy note).
	General bool
}

type Summary struct {
	TotalAmount decimal.Decimal // accumulated unrounded, independent of row rounding
	Breakdown   []Row
}

// Service is the application-facing surface for cost entries.
type Service struct {
	Costs  generic.CostStore
	Logger *zap.Logger
}

func NewService(store generic.CostStore, logger *zap.Logger) *Service {
	return &Service{Costs: store, Logger: logger}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateEntry enforces the per-scope required fields and the period
// invariant period_from <= period_to.
func ValidateEntry(e generic.CostEntry) error {
	switch e.Scope {
	case generic.CostScopeProject:
	case generic.CostScopeMarketplace:
		if e.MarketplaceCode == "" {
			return &generic.ValidationError{Field: "marketplace_code", Message: "required for marketplace scope"}
		}
	case generic.CostScopeProduct:
		if e.InternalSKU == "" {
			return &generic.ValidationError{Field: "internal_sku", Message: "required for product scope"}
		}
	default:
		return &generic.ValidationError{Field: "scope", Message: "unknown scope " + string(e.Scope)}
	}

	if e.PeriodFrom.IsZero() || e.PeriodTo.IsZero() {
		return &generic.ValidationError{Field: "period", Message: "period_from and period_to are required"}
	}
	if e.PeriodTo.Before(e.PeriodFrom) {
		return generic.ErrInvalidPeriod
	}
	if e.Amount.Currency == "" {
		return &generic.ValidationError{Field: "currency", Message: "required"}
	}
	if e.Category == "" {
		return &generic.ValidationError{Field: "category", Message: "required"}
	}
	return nil
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summarize prorates every overlapping entry into the window and groups
// the contributions. marketplaceCode optionally narrows marketplace- and
// product-scope entries to one marketplace; project-scope entries always
// stay in (they cannot be attributed to any marketplace).
func (s *Service) Summarize(ctx context.Context, window generic.Period, groupBy GroupBy, marketplaceCode string) (Summary, error) {
	switch groupBy {
	case GroupByProject, GroupByMarketplace, GroupByProduct:
	default:
		return Summary{}, &generic.ValidationError{Field: "group_by", Message: "unknown grouping " + string(groupBy)}
	}

	entries, err := s.Costs.CostsOverlapping(ctx, window)
	if err != nil {
		return Summary{}, err
	}

	acc := generic.NewAccumulator()
	rowMeta := make(map[string]Row)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		if marketplaceCode != "" && e.Scope != generic.CostScopeProject && e.MarketplaceCode != marketplaceCode {
			continue
		}

		share := generic.ProrateEntry(e, window)
		if share.Value.IsZero() {
			continue
		}

		row := rowFor(e, groupBy)
		key := groupKey(row)
		if _, seen := rowMeta[key.ID()]; !seen {
			rowMeta[key.ID()] = row
		}
		acc.Add(key, share.Value)
	}

	summary := Summary{TotalAmount: acc.Total()}
	for _, g := range acc.Groups() {
		row := rowMeta[g.Key.ID()]
		row.Amount = g.Amount
		summary.Breakdown = append(summary.Breakdown, row)
	}
	return summary, nil
}

// rowFor maps an entry onto the requested grouping, emptying every
// dimension the entry's scope cannot attribute.
func rowFor(e generic.CostEntry, groupBy GroupBy) Row {
	row := Row{Category: e.Category, Subcategory: e.Subcategory}

	switch groupBy {
	case GroupByProject:
		// Category/subcategory only; every scope attributes fully.
	case GroupByMarketplace:
		// A product-scope entry without a marketplace code is just as
		// unattributable here as a project-scope one.
		if e.Scope == generic.CostScopeProject || e.MarketplaceCode == "" {
			row.General = true
		} else {
			row.MarketplaceCode = e.MarketplaceCode
		}
	case GroupByProduct:
		if e.Scope == generic.CostScopeProduct {
			row.InternalSKU = e.InternalSKU
			row.NmID = e.NmID
			row.MarketplaceCode = e.MarketplaceCode
		} else {
			row.General = true
		}
	}
	return row
}

func groupKey(r Row) generic.GroupKey {
	general := ""
	if r.General {
		general = "general"
	}
	return generic.GroupKey{general, r.MarketplaceCode, r.InternalSKU, r.NmID, r.Category, r.Subcategory}
}

// =============================================================================
// CRUD
// =============================================================================

// Create validates and inserts an entry, assigning its id.
func (s *Service) Create(ctx context.Context, e generic.CostEntry) (generic.CostEntry, error) {
	if err := ValidateEntry(e); err != nil {
		return generic.CostEntry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.Costs.InsertCost(ctx, e); err != nil {
		return generic.CostEntry{}, err
	}
	return e, nil
}

// Update replaces an entry by id.
func (s *Service) Update(ctx context.Context, e generic.CostEntry) error {
	if err := ValidateEntry(e); err != nil {
		return err
	}
	return s.Costs.UpdateCost(ctx, e)
}

// Delete removes an entry by id. ErrEntryNotFound maps to an idempotent 404.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Costs.DeleteCost(ctx, id)
}

// List returns a page of entries plus the total match count.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]generic.CostEntry, int, error) {
	return s.Costs.ListCosts(ctx, search, limit, offset)
}
