package cogs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/catalog"
	"github.com/warp/tariff-engine/cogs"
	"github.com/warp/tariff-engine/generic"
	"github.com/warp/tariff-engine/generic/store"
	"github.com/warp/tariff-engine/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

type fixture struct {
	svc    *cogs.Service
	store  *store.Memory
	prices *pricing.MemorySource
	cat    *catalog.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	src := pricing.NewMemorySource("wb_price")
	reg := pricing.NewRegistry()
	reg.Register("wb_price", src)
	cat := catalog.NewStatic()
	return &fixture{
		svc:    cogs.NewService(mem, reg, cat, nil),
		store:  mem,
		prices: src,
		cat:    cat,
	}
}

func (f *fixture) addFixed(t *testing.T, key generic.EntityKey, scope generic.Scope, from generic.TimePoint, value string) {
	t.Helper()
	_, _, err := f.svc.Upsert(context.Background(), generic.RuleEntry{
		EntityKey: key,
		Scope:     scope,
		ValidFrom: from,
		Mode:      generic.ModeFixed,
		Value:     decimal.RequireFromString(value),
		Currency:  "RUB",
	})
	if err != nil {
		t.Fatalf("seed fixed rule for %s: %v", key, err)
	}
}

func (f *fixture) addPercent(t *testing.T, key generic.EntityKey, scope generic.Scope, from generic.TimePoint, pct string) {
	t.Helper()
	_, _, err := f.svc.Upsert(context.Background(), generic.RuleEntry{
		EntityKey:       key,
		Scope:           scope,
		ValidFrom:       from,
		Mode:            generic.ModePercentOfPrice,
		Value:           decimal.RequireFromString(pct),
		PriceSourceCode: "wb_price",
	})
	if err != nil {
		t.Fatalf("seed percent rule for %s: %v", key, err)
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestResolveCost_FixedRule(t *testing.T) {
	f := newFixture(t)
	f.addFixed(t, "SKU1", generic.ScopeSKU, date(2024, time.January, 1), "40")

	cost, err := f.svc.ResolveCost(context.Background(), "SKU1", date(2024, time.February, 1))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !cost.Amount.Value.Equal(decimal.NewFromInt(40)) || cost.Amount.Currency != "RUB" {
		t.Errorf("expected 40 RUB, got %s", cost.Amount)
	}
	if cost.FromDefault {
		t.Error("specific rule must not be flagged as default")
	}
}

func TestResolveCost_FallsBackToDefault(t *testing.T) {
	// GIVEN: SKU1 has a specific rule (40), ALL default exists (10)
	// WHEN: Resolving SKU1 and SKU2 at 2024-02-01
	// THEN: SKU1 -> 40, SKU2 -> 10 via the default

	f := newFixture(t)
	f.addFixed(t, "SKU1", generic.ScopeSKU, date(2024, time.January, 1), "40")
	f.addFixed(t, generic.EntityKeyAll, generic.ScopeAll, date(2023, time.January, 1), "10")

	asOf := date(2024, time.February, 1)

	cost, err := f.svc.ResolveCost(context.Background(), "SKU1", asOf)
	if err != nil {
		t.Fatalf("resolve SKU1: %v", err)
	}
	if !cost.Amount.Value.Equal(decimal.NewFromInt(40)) {
		t.Errorf("SKU1: expected 40, got %s", cost.Amount.Value)
	}

	cost, err = f.svc.ResolveCost(context.Background(), "SKU2", asOf)
	if err != nil {
		t.Fatalf("resolve SKU2: %v", err)
	}
	if !cost.Amount.Value.Equal(decimal.NewFromInt(10)) {
		t.Errorf("SKU2: expected 10 via default, got %s", cost.Amount.Value)
	}
	if !cost.FromDefault {
		t.Error("SKU2 resolution must be flagged as default")
	}
}

func TestResolveCost_PercentOfPrice(t *testing.T) {
	f := newFixture(t)
	f.addPercent(t, "SKU1", generic.ScopeSKU, date(2024, time.January, 1), "25")
	f.prices.SetPrice("SKU1", date(2024, time.January, 15), generic.NewMoney(decimal.NewFromInt(1000), "RUB"))

	// Price effective-dated: the Jan 15 price answers any later date.
	cost, err := f.svc.ResolveCost(context.Background(), "SKU1", date(2024, time.March, 1))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !cost.Amount.Value.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expected 25%% of 1000 = 250, got %s", cost.Amount.Value)
	}
}

func TestResolveCost_MissingPrice_IsUnavailableNotNoRule(t *testing.T) {
	// GIVEN: A percent rule whose price series has no price for the SKU
	// WHEN: Resolving
	// THEN: ErrPriceSourceUnavailable, distinct from ErrNoRuleFound

	f := newFixture(t)
	f.addPercent(t, "SKU1", generic.ScopeSKU, date(2024, time.January, 1), "25")

	_, err := f.svc.ResolveCost(context.Background(), "SKU1", date(2024, time.March, 1))
	if !errors.Is(err, generic.ErrPriceSourceUnavailable) {
		t.Fatalf("expected ErrPriceSourceUnavailable, got %v", err)
	}
	if errors.Is(err, generic.ErrNoRuleFound) {
		t.Fatal("price unavailability must not masquerade as no-rule")
	}
}

func TestResolveCost_NoRule(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveCost(context.Background(), "SKU1", date(2024, time.March, 1))
	if !errors.Is(err, generic.ErrNoRuleFound) {
		t.Fatalf("expected ErrNoRuleFound, got %v", err)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateEntry_PerModeRequiredFields(t *testing.T) {
	valid := date(2024, time.January, 1)

	cases := []struct {
		name    string
		entry   generic.RuleEntry
		wantErr bool
	}{
		{
			name: "fixed without currency",
			entry: generic.RuleEntry{
				EntityKey: "SKU1", Scope: generic.ScopeSKU, ValidFrom: valid,
				Mode: generic.ModeFixed, Value: decimal.NewFromInt(40),
			},
			wantErr: true,
		},
		{
			name: "percent without price source",
			entry: generic.RuleEntry{
				EntityKey: "SKU1", Scope: generic.ScopeSKU, ValidFrom: valid,
				Mode: generic.ModePercentOfPrice, Value: decimal.NewFromInt(25),
			},
			wantErr: true,
		},
		{
			name: "percent above 100",
			entry: generic.RuleEntry{
				EntityKey: "SKU1", Scope: generic.ScopeSKU, ValidFrom: valid,
				Mode: generic.ModePercentOfPrice, Value: decimal.NewFromInt(150), PriceSourceCode: "wb_price",
			},
			wantErr: true,
		},
		{
			name: "all scope with sku key",
			entry: generic.RuleEntry{
				EntityKey: "SKU1", Scope: generic.ScopeAll, ValidFrom: valid,
				Mode: generic.ModeFixed, Value: decimal.NewFromInt(10), Currency: "RUB",
			},
			wantErr: true,
		},
		{
			name: "sku literally named ALL is legal",
			entry: generic.RuleEntry{
				EntityKey: "ALL", Scope: generic.ScopeSKU, ValidFrom: valid,
				Mode: generic.ModeFixed, Value: decimal.NewFromInt(10), Currency: "RUB",
			},
			wantErr: false,
		},
		{
			name: "valid_to before valid_from",
			entry: func() generic.RuleEntry {
				to := date(2023, time.June, 1)
				return generic.RuleEntry{
					EntityKey: "SKU1", Scope: generic.ScopeSKU, ValidFrom: valid, ValidTo: &to,
					Mode: generic.ModeFixed, Value: decimal.NewFromInt(10), Currency: "RUB",
				}
			}(),
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := cogs.ValidateEntry(tc.entry)
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

// =============================================================================
// COVERAGE
// =============================================================================

func TestCoverage_ReportAndMissingList(t *testing.T) {
	f := newFixture(t)
	for _, sku := range []string{"SKU1", "SKU2", "SKU3"} {
		f.cat.AddSKU(catalog.SKU{InternalSKU: sku, MarketplaceCode: "wb"})
	}
	f.addFixed(t, "SKU2", generic.ScopeSKU, date(2024, time.January, 1), "40")

	asOf := date(2024, time.June, 1)

	report, err := f.svc.Coverage(context.Background(), asOf, false)
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if !report.InternalDataAvailable {
		t.Error("catalog is non-empty, internal data must be available")
	}
	if report.InternalSKUsTotal != 3 || report.CoveredTotal != 1 || report.MissingTotal != 2 {
		t.Errorf("unexpected report: %+v", report)
	}

	missing, err := f.svc.MissingSKUs(context.Background(), asOf, 10)
	if err != nil {
		t.Fatalf("missing skus: %v", err)
	}
	if len(missing) != 2 || missing[0] != "SKU1" || missing[1] != "SKU3" {
		t.Errorf("expected [SKU1 SKU3], got %v", missing)
	}
}

func TestCoverage_PercentRuleWithoutPriceCountsAsMissing(t *testing.T) {
	// A rule that exists but cannot be valued is a coverage gap, not a crash.
	f := newFixture(t)
	f.cat.AddSKU(catalog.SKU{InternalSKU: "SKU1", MarketplaceCode: "wb"})
	f.addPercent(t, "SKU1", generic.ScopeSKU, date(2024, time.January, 1), "25")

	report, err := f.svc.Coverage(context.Background(), date(2024, time.June, 1), false)
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if report.CoveredTotal != 0 || report.MissingTotal != 1 {
		t.Errorf("expected the unpriceable SKU to be missing, got %+v", report)
	}
}

func TestCoverage_CacheAndForce(t *testing.T) {
	f := newFixture(t)
	f.cat.AddSKU(catalog.SKU{InternalSKU: "SKU1", MarketplaceCode: "wb"})

	asOf := date(2024, time.June, 1)

	report, err := f.svc.Coverage(context.Background(), asOf, false)
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if report.CoveredTotal != 0 {
		t.Fatalf("expected no coverage yet, got %+v", report)
	}

	// A write invalidates the cache, so the next read sees the new rule.
	f.addFixed(t, "SKU1", generic.ScopeSKU, date(2024, time.January, 1), "40")

	report, err = f.svc.Coverage(context.Background(), asOf, false)
	if err != nil {
		t.Fatalf("coverage after write: %v", err)
	}
	if report.CoveredTotal != 1 {
		t.Errorf("expected cache invalidation after write, got %+v", report)
	}

	// force recomputes even with a warm cache.
	report, err = f.svc.Coverage(context.Background(), asOf, true)
	if err != nil {
		t.Fatalf("forced coverage: %v", err)
	}
	if report.CoveredTotal != 1 {
		t.Errorf("forced recompute disagreed: %+v", report)
	}
}

// =============================================================================
// BULK
// =============================================================================

func TestBulkUpsert_ModeValidationPerRow(t *testing.T) {
	f := newFixture(t)

	rows := []generic.BulkRow{
		{Entry: generic.RuleEntry{
			EntityKey: "SKU1", Scope: generic.ScopeSKU, ValidFrom: date(2024, time.January, 1),
			Mode: generic.ModeFixed, Value: decimal.NewFromInt(40), Currency: "RUB",
		}},
		{Entry: generic.RuleEntry{ // missing currency
			EntityKey: "SKU2", Scope: generic.ScopeSKU, ValidFrom: date(2024, time.January, 1),
			Mode: generic.ModeFixed, Value: decimal.NewFromInt(40),
		}},
		{Entry: generic.RuleEntry{
			EntityKey: "SKU3", Scope: generic.ScopeSKU, ValidFrom: date(2024, time.January, 1),
			Mode: generic.ModePercentOfPrice, Value: decimal.NewFromInt(25), PriceSourceCode: "wb_price",
		}},
	}

	result, err := f.svc.BulkUpsert(context.Background(), rows)
	if err != nil {
		t.Fatalf("bulk upsert: %v", err)
	}
	if result.Inserted != 2 || result.Failed != 1 {
		t.Errorf("expected 2 inserted / 1 failed, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].RowIndex != 1 {
		t.Errorf("expected error at row 1, got %+v", result.Errors)
	}
	if result.Outcome() != "partial" {
		t.Errorf("expected partial outcome, got %s", result.Outcome())
	}
}
