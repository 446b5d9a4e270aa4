/*
Package packaging implements per-unit packaging tariffs.

PURPOSE:
  A packaging tariff is a supersede-only timeline per SKU: each
  (valid_from, cost_per_unit) point is effective until the next later
  point. There is no SKU/ALL split and no valid_to. Before the first
  point the effective cost is zero, by explicit policy; summaries still
  surface such SKUs as a data-quality signal instead of silently zeroing
  them.

SEE ALSO:
  - generic/resolver.go: ResolveTariffPoint / TariffCostAt
  - catalog: SalesFeed consumed by Summary
*/
package packaging

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/tariff-engine/catalog"
	"github.com/warp/tariff-engine/generic"
)

// Service wires the tariff store and the sales feed.
type Service struct {
	Tariffs generic.TariffStore
	Sales   catalog.SalesFeed
	Logger  *zap.Logger
}

func NewService(tariffs generic.TariffStore, sales catalog.SalesFeed, logger *zap.Logger) *Service {
	return &Service{Tariffs: tariffs, Sales: sales, Logger: logger}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// UnitCost returns the per-unit packaging cost of a SKU at a date. Never an
// error for a missing timeline: the zero-cost policy applies.
func (s *Service) UnitCost(ctx context.Context, sku generic.EntityKey, asOf generic.TimePoint) (generic.Money, error) {
	points, err := s.Tariffs.ListTariffPoints(ctx, sku)
	if err != nil {
		return generic.Money{}, err
	}
	if p, ok := generic.ResolveTariffPoint(points, asOf); ok {
		return generic.NewMoney(p.CostPerUnit, p.Currency), nil
	}
	return generic.NewMoney(decimal.Zero, ""), nil
}

// =============================================================================
// SUMMARY
// =============================================================================

// SKUCost is one summary row: total packaging cost of a SKU's sales in the
// window, resolved at each sale's date.
type SKUCost struct {
	SKU   generic.EntityKey
	Units int
	Cost  decimal.Decimal // unrounded; round once at the boundary
}

// MissingTariff enumerates SKUs that sold in the window but had no tariff
// point at one or more sale dates.
type MissingTariff struct {
	Count int
	SKUs  []generic.EntityKey
}

type Summary struct {
	TotalCost     decimal.Decimal
	PerSKU        []SKUCost
	MissingTariff MissingTariff
}

// Summary multiplies units sold by the unit cost effective at each sale
// date and aggregates per SKU. SKUs falling under the zero-before-first
// policy are reported in MissingTariff, never silently dropped.
func (s *Service) Summary(ctx context.Context, window generic.Period) (Summary, error) {
	sales, err := s.Sales.SalesIn(ctx, window)
	if err != nil {
		return Summary{}, err
	}

	acc := generic.NewAccumulator()
	units := make(map[generic.EntityKey]int)
	missing := make(map[generic.EntityKey]bool)
	timelines := make(map[generic.EntityKey][]generic.TariffPoint)

	for _, sale := range sales {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}

		sku := generic.EntityKey(sale.SKU)
		points, ok := timelines[sku]
		if !ok {
			points, err = s.Tariffs.ListTariffPoints(ctx, sku)
			if err != nil {
				return Summary{}, err
			}
			timelines[sku] = points
		}

		units[sku] += sale.Units
		point, resolved := generic.ResolveTariffPoint(points, sale.Date)
		if !resolved {
			missing[sku] = true
			acc.Add(generic.GroupKey{string(sku)}, decimal.Zero)
			continue
		}
		acc.Add(generic.GroupKey{string(sku)}, point.CostPerUnit.Mul(decimal.NewFromInt(int64(sale.Units))))
	}

	summary := Summary{TotalCost: acc.Total()}
	for _, g := range acc.Groups() {
		sku := generic.EntityKey(g.Key[0])
		summary.PerSKU = append(summary.PerSKU, SKUCost{SKU: sku, Units: units[sku], Cost: g.Amount})
	}

	for sku := range missing {
		summary.MissingTariff.SKUs = append(summary.MissingTariff.SKUs, sku)
	}
	sort.Slice(summary.MissingTariff.SKUs, func(i, j int) bool {
		return summary.MissingTariff.SKUs[i] < summary.MissingTariff.SKUs[j]
	})
	summary.MissingTariff.Count = len(summary.MissingTariff.SKUs)

	if s.Logger != nil && summary.MissingTariff.Count > 0 {
		s.Logger.Warn("sales without tariff coverage in window",
			zap.String("window", window.String()),
			zap.Int("skus", summary.MissingTariff.Count),
		)
	}
	return summary, nil
}

// =============================================================================
// WRITES
// =============================================================================

func validatePoint(p generic.TariffPoint) error {
	if p.SKU == "" {
		return &generic.ValidationError{Field: "sku", Message: "required"}
	}
	if p.ValidFrom.IsZero() {
		return &generic.ValidationError{Field: "valid_from", Message: "required"}
	}
	if p.CostPerUnit.IsNegative() {
		return &generic.ValidationError{Field: "cost_per_unit", Message: "must not be negative"}
	}
	if p.Currency == "" {
		return &generic.ValidationError{Field: "currency", Message: "required"}
	}
	return nil
}

// AddPoint validates and upserts one point keyed by (sku, valid_from).
func (s *Service) AddPoint(ctx context.Context, p generic.TariffPoint) (bool, error) {
	if err := validatePoint(p); err != nil {
		return false, err
	}
	return s.Tariffs.UpsertTariffPoint(ctx, p)
}

// BulkAssign applies one rate to N SKUs from one date, with the same
// per-row accounting as rule bulk upserts.
func (s *Service) BulkAssign(ctx context.Context, skus []generic.EntityKey, costPerUnit decimal.Decimal, currency string, from generic.TimePoint) (generic.BulkUpsertResult, error) {
	var result generic.BulkUpsertResult

	for i, sku := range skus {
		p := generic.TariffPoint{SKU: sku, ValidFrom: from, CostPerUnit: costPerUnit, Currency: currency}
		if err := validatePoint(p); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, generic.RowError{RowIndex: i, EntityKey: sku, Message: err.Error()})
			continue
		}

		created, err := s.Tariffs.UpsertTariffPoint(ctx, p)
		if err != nil {
			return result, fmt.Errorf("row %d: upsert tariff %s: %w", i, sku, err)
		}
		if created {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

// DeletePoint removes a point by id. ErrEntryNotFound maps to an
// idempotent 404.
func (s *Service) DeletePoint(ctx context.Context, id int64) error {
	return s.Tariffs.DeleteTariffPoint(ctx, id)
}

// List returns a page of points plus the total match count.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]generic.TariffPoint, int, error) {
	return s.Tariffs.SearchTariffPoints(ctx, search, limit, offset)
}
