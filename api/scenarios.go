/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the store with realistic data
  for testing and demos. Each scenario seeds catalog SKUs, rules, tariffs,
  prices and cost entries that demonstrate specific features.

AVAILABLE SCENARIOS:
  basic-fixed:       Fixed per-SKU rules plus an ALL-scope default
  percent-of-price:  Percent rules against a dated price series
  coverage-gaps:     A partially covered catalog for the fill-the-gaps flow
  full-month:        Rules + tariffs + prorated costs over one month

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Seed catalog SKUs and sales
 3. Upsert rules / tariff points / cost entries through the services,
    so every seeded row passes the same validation as API writes

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "percent-of-price"}

NOTE:
  Scenarios reset the store. Only wire the loader in development/demo
  environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - server.go: Route wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/catalog"
	"github.com/warp/tariff-engine/cogs"
	"github.com/warp/tariff-engine/costs"
	"github.com/warp/tariff-engine/generic"
	"github.com/warp/tariff-engine/packaging"
	"github.com/warp/tariff-engine/pricing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "basic-fixed",
		Name:        "Basic Fixed Rules",
		Description: "Fixed per-SKU rules plus an ALL-scope default fallback",
		Category:    "cogs",
	},
	{
		ID:          "percent-of-price",
		Name:        "Percent of Price",
		Description: "Percent rules valued against a dated price series",
		Category:    "cogs",
	},
	{
		ID:          "coverage-gaps",
		Name:        "Coverage Gaps",
		Description: "Partially covered catalog driving the fill-the-gaps flow",
		Category:    "cogs",
	},
	{
		ID:          "full-month",
		Name:        "Full Month",
		Description: "Rules, packaging tariffs and prorated costs over one month",
		Category:    "mixed",
	},
}

// ScenarioLoader seeds demo data through the domain services so every
// seeded row passes the same validation as an API write.
type ScenarioLoader struct {
	COGS      *cogs.Service
	Packaging *packaging.Service
	Costs     *costs.Service
	Catalog   *catalog.Static
	Prices    *pricing.MemorySource

	// Reset clears the backing store before a load.
	Reset func(ctx context.Context) error
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.scenarios == nil {
		writeError(w, http.StatusNotFound, "Scenario loading is not enabled", nil)
		return
	}

	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.scenarios.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "basic-fixed":
		err = h.scenarios.loadBasicFixed(ctx)
	case "percent-of-price":
		err = h.scenarios.loadPercentOfPrice(ctx)
	case "coverage-gaps":
		err = h.scenarios.loadCoverageGaps(ctx)
	case "full-month":
		err = h.scenarios.loadFullMonth(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// ResetStore clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if h.scenarios == nil {
		writeError(w, http.StatusNotFound, "Scenario loading is not enabled", nil)
		return
	}
	if err := h.scenarios.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// LOADERS
// =============================================================================

func (l *ScenarioLoader) seedCatalog(codes ...string) {
	for i, code := range codes {
		l.Catalog.AddSKU(catalog.SKU{
			InternalSKU:     code,
			NmID:            fmt.Sprintf("10%d", i+1),
			MarketplaceCode: "wb",
		})
	}
}

func (l *ScenarioLoader) upsertRule(ctx context.Context, e generic.RuleEntry) error {
	if _, _, err := l.COGS.Upsert(ctx, e); err != nil {
		return fmt.Errorf("seed rule %s: %w", e.EntityKey, err)
	}
	return nil
}

func fixedRuleSeed(key string, scope generic.Scope, from generic.TimePoint, value string) generic.RuleEntry {
	return generic.RuleEntry{
		EntityKey: generic.EntityKey(key),
		Scope:     scope,
		ValidFrom: from,
		Mode:      generic.ModeFixed,
		Value:     decimal.RequireFromString(value),
		Currency:  "RUB",
	}
}

// loadBasicFixed seeds two priced SKUs plus a default every other SKU
// falls back to.
func (l *ScenarioLoader) loadBasicFixed(ctx context.Context) error {
	l.seedCatalog("SKU1", "SKU2", "SKU3")
	from := generic.NewTimePoint(2024, time.January, 1)

	if err := l.upsertRule(ctx, fixedRuleSeed("SKU1", generic.ScopeSKU, from, "40")); err != nil {
		return err
	}
	if err := l.upsertRule(ctx, fixedRuleSeed("SKU2", generic.ScopeSKU, from, "55.50")); err != nil {
		return err
	}
	return l.upsertRule(ctx, fixedRuleSeed(string(generic.EntityKeyAll), generic.ScopeAll, from, "10"))
}

// loadPercentOfPrice seeds percent rules and the price series they value
// against, including one price change mid-series.
func (l *ScenarioLoader) loadPercentOfPrice(ctx context.Context) error {
	l.seedCatalog("SKU1", "SKU2")
	from := generic.NewTimePoint(2024, time.January, 1)

	l.Prices.SetPrice("SKU1", from, generic.NewMoney(decimal.NewFromInt(1000), "RUB"))
	l.Prices.SetPrice("SKU1", generic.NewTimePoint(2024, time.June, 1), generic.NewMoney(decimal.NewFromInt(1200), "RUB"))
	l.Prices.SetPrice("SKU2", from, generic.NewMoney(decimal.NewFromInt(500), "RUB"))

	for _, key := range []string{"SKU1", "SKU2"} {
		e := generic.RuleEntry{
			EntityKey:       generic.EntityKey(key),
			Scope:           generic.ScopeSKU,
			ValidFrom:       from,
			Mode:            generic.ModePercentOfPrice,
			Value:           decimal.NewFromInt(25),
			PriceSourceCode: "wb_price",
		}
		if err := l.upsertRule(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// loadCoverageGaps seeds a five-SKU catalog with rules for only two, so
// the coverage report and missing-SKU prefill have something to show.
func (l *ScenarioLoader) loadCoverageGaps(ctx context.Context) error {
	l.seedCatalog("SKU1", "SKU2", "SKU3", "SKU4", "SKU5")
	from := generic.NewTimePoint(2024, time.January, 1)

	if err := l.upsertRule(ctx, fixedRuleSeed("SKU1", generic.ScopeSKU, from, "40")); err != nil {
		return err
	}
	return l.upsertRule(ctx, fixedRuleSeed("SKU2", generic.ScopeSKU, from, "35"))
}

// loadFullMonth seeds everything at once: rules, packaging tariffs with a
// mid-month rate change, June sales and period costs that prorate.
func (l *ScenarioLoader) loadFullMonth(ctx context.Context) error {
	if err := l.loadBasicFixed(ctx); err != nil {
		return err
	}

	jan := generic.NewTimePoint(2024, time.January, 1)
	jun15 := generic.NewTimePoint(2024, time.June, 15)

	points := []generic.TariffPoint{
		{SKU: "SKU1", ValidFrom: jan, CostPerUnit: decimal.NewFromInt(5), Currency: "RUB"},
		{SKU: "SKU1", ValidFrom: jun15, CostPerUnit: decimal.NewFromInt(7), Currency: "RUB"},
		{SKU: "SKU2", ValidFrom: jan, CostPerUnit: decimal.RequireFromString("3.50"), Currency: "RUB"},
	}
	for _, p := range points {
		if _, err := l.Packaging.AddPoint(ctx, p); err != nil {
			return fmt.Errorf("seed tariff %s: %w", p.SKU, err)
		}
	}

	l.Catalog.AddSale(catalog.Sale{SKU: "SKU1", Date: generic.NewTimePoint(2024, time.June, 10), Units: 3})
	l.Catalog.AddSale(catalog.Sale{SKU: "SKU1", Date: generic.NewTimePoint(2024, time.June, 20), Units: 2})
	l.Catalog.AddSale(catalog.Sale{SKU: "SKU2", Date: generic.NewTimePoint(2024, time.June, 5), Units: 10})

	entries := []generic.CostEntry{
		{
			Scope:      generic.CostScopeProject,
			PeriodFrom: generic.NewTimePoint(2024, time.June, 1),
			PeriodTo:   generic.NewTimePoint(2024, time.June, 30),
			Amount:     generic.NewMoney(decimal.NewFromInt(3000), "RUB"),
			Category:   "marketing",
		},
		{
			Scope:           generic.CostScopeMarketplace,
			MarketplaceCode: "wb",
			PeriodFrom:      generic.NewTimePoint(2024, time.June, 1),
			PeriodTo:        generic.NewTimePoint(2024, time.June, 30),
			Amount:          generic.NewMoney(decimal.NewFromInt(450), "RUB"),
			Category:        "fees",
			Subcategory:     "storage",
		},
	}
	for _, e := range entries {
		if _, err := l.Costs.Create(ctx, e); err != nil {
			return fmt.Errorf("seed cost %s: %w", e.Category, err)
		}
	}
	return nil
}
