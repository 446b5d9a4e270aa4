package packaging_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/catalog"
	"github.com/warp/tariff-engine/generic"
	"github.com/warp/tariff-engine/generic/store"
	"github.com/warp/tariff-engine/packaging"
)

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func newService(t *testing.T) (*packaging.Service, *catalog.Static) {
	t.Helper()
	cat := catalog.NewStatic()
	return packaging.NewService(store.NewMemory(), cat, nil), cat
}

func addPoint(t *testing.T, svc *packaging.Service, sku string, from generic.TimePoint, cost string) {
	t.Helper()
	_, err := svc.AddPoint(context.Background(), generic.TariffPoint{
		SKU:         generic.EntityKey(sku),
		ValidFrom:   from,
		CostPerUnit: decimal.RequireFromString(cost),
		Currency:    "RUB",
	})
	if err != nil {
		t.Fatalf("add point %s: %v", sku, err)
	}
}

func TestUnitCost_SupersessionAndZeroPolicy(t *testing.T) {
	svc, _ := newService(t)
	addPoint(t, svc, "SKU1", date(2024, time.January, 1), "5")
	addPoint(t, svc, "SKU1", date(2024, time.June, 1), "7")

	// Before the first point: zero, never an error.
	cost, err := svc.UnitCost(context.Background(), "SKU1", date(2023, time.December, 31))
	if err != nil {
		t.Fatalf("unit cost: %v", err)
	}
	if !cost.Value.IsZero() {
		t.Errorf("expected zero before first valid_from, got %s", cost.Value)
	}

	cost, err = svc.UnitCost(context.Background(), "SKU1", date(2024, time.March, 1))
	if err != nil {
		t.Fatalf("unit cost: %v", err)
	}
	if !cost.Value.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected 5 before supersession, got %s", cost.Value)
	}

	cost, err = svc.UnitCost(context.Background(), "SKU1", date(2024, time.July, 1))
	if err != nil {
		t.Fatalf("unit cost: %v", err)
	}
	if !cost.Value.Equal(decimal.NewFromInt(7)) {
		t.Errorf("expected 7 after supersession, got %s", cost.Value)
	}
}

func TestSummary_CostsAndMissingTariffs(t *testing.T) {
	// GIVEN: SKU1 has a tariff (5/unit), SKU2 sold but has no timeline,
	//        SKU3's timeline starts after its sale
	// WHEN: Summarizing June 2024
	// THEN: SKU1 contributes 10 units * 5, SKU2 and SKU3 are surfaced as
	//       missing with zero cost, not silently dropped

	svc, cat := newService(t)
	addPoint(t, svc, "SKU1", date(2024, time.January, 1), "5")
	addPoint(t, svc, "SKU3", date(2024, time.June, 20), "9")

	cat.AddSale(catalog.Sale{SKU: "SKU1", Date: date(2024, time.June, 5), Units: 4})
	cat.AddSale(catalog.Sale{SKU: "SKU1", Date: date(2024, time.June, 15), Units: 6})
	cat.AddSale(catalog.Sale{SKU: "SKU2", Date: date(2024, time.June, 10), Units: 3})
	cat.AddSale(catalog.Sale{SKU: "SKU3", Date: date(2024, time.June, 10), Units: 2})
	// Outside the window, must not contribute.
	cat.AddSale(catalog.Sale{SKU: "SKU1", Date: date(2024, time.July, 1), Units: 100})

	window := generic.Period{From: date(2024, time.June, 1), To: date(2024, time.June, 30)}
	summary, err := svc.Summary(context.Background(), window)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if !summary.TotalCost.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected total 50, got %s", summary.TotalCost)
	}
	if summary.MissingTariff.Count != 2 {
		t.Fatalf("expected 2 missing SKUs, got %+v", summary.MissingTariff)
	}
	if summary.MissingTariff.SKUs[0] != "SKU2" || summary.MissingTariff.SKUs[1] != "SKU3" {
		t.Errorf("expected [SKU2 SKU3], got %v", summary.MissingTariff.SKUs)
	}

	var sku1 *packaging.SKUCost
	for i := range summary.PerSKU {
		if summary.PerSKU[i].SKU == "SKU1" {
			sku1 = &summary.PerSKU[i]
		}
	}
	if sku1 == nil {
		t.Fatal("SKU1 missing from breakdown")
	}
	if sku1.Units != 10 || !sku1.Cost.Equal(decimal.NewFromInt(50)) {
		t.Errorf("SKU1: expected 10 units / cost 50, got %+v", *sku1)
	}
}

func TestSummary_ResolvesAtEachSaleDate(t *testing.T) {
	// A rate change mid-window must price each sale at its own date.
	svc, cat := newService(t)
	addPoint(t, svc, "SKU1", date(2024, time.January, 1), "5")
	addPoint(t, svc, "SKU1", date(2024, time.June, 15), "7")

	cat.AddSale(catalog.Sale{SKU: "SKU1", Date: date(2024, time.June, 10), Units: 1})
	cat.AddSale(catalog.Sale{SKU: "SKU1", Date: date(2024, time.June, 20), Units: 1})

	window := generic.Period{From: date(2024, time.June, 1), To: date(2024, time.June, 30)}
	summary, err := svc.Summary(context.Background(), window)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.TotalCost.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expected 5 + 7 = 12, got %s", summary.TotalCost)
	}
}

func TestBulkAssign_OneRateToManySKUs(t *testing.T) {
	svc, _ := newService(t)
	addPoint(t, svc, "SKU2", date(2024, time.June, 1), "3")

	result, err := svc.BulkAssign(
		context.Background(),
		[]generic.EntityKey{"SKU1", "SKU2", ""},
		decimal.RequireFromString("4.50"), "RUB",
		date(2024, time.June, 1),
	)
	if err != nil {
		t.Fatalf("bulk assign: %v", err)
	}

	// SKU1 new, SKU2 has the same (sku, valid_from) key so it's updated,
	// the empty SKU fails validation.
	if result.Inserted != 1 || result.Updated != 1 || result.Failed != 1 {
		t.Errorf("expected 1/1/1, got %+v", result)
	}
	if result.Inserted+result.Updated+result.Failed != 3 {
		t.Error("row accounting must sum to the batch size")
	}

	cost, err := svc.UnitCost(context.Background(), "SKU2", date(2024, time.June, 2))
	if err != nil {
		t.Fatalf("unit cost: %v", err)
	}
	if !cost.Value.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("expected SKU2 updated to 4.50, got %s", cost.Value)
	}
}
