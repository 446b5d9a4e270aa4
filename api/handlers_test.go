/*
handlers_test.go - HTTP round-trip tests for API handlers

Tests for:
- Bulk rule upsert accounting over HTTP (partial outcome)
- Coverage and missing-SKU prefill responses
- Cost summary proration through query parameters
- Idempotent deletes (second delete is 404)
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/catalog"
	"github.com/warp/tariff-engine/cogs"
	"github.com/warp/tariff-engine/costs"
	"github.com/warp/tariff-engine/generic"
	"github.com/warp/tariff-engine/generic/store"
	"github.com/warp/tariff-engine/packaging"
	"github.com/warp/tariff-engine/pricing"
)

// newTestServer wires a full handler stack over the in-memory store.
func newTestServer(t *testing.T) (*httptest.Server, *ScenarioLoader) {
	t.Helper()

	mem := store.NewMemory()
	cat := catalog.NewStatic()

	prices := pricing.NewMemorySource("wb_price")
	registry := pricing.NewRegistry()
	registry.Register("wb_price", prices)

	cogsSvc := cogs.NewService(mem, registry, cat, nil)
	pkgSvc := packaging.NewService(mem, cat, nil)
	costsSvc := costs.NewService(mem, nil)

	loader := &ScenarioLoader{
		COGS:      cogsSvc,
		Packaging: pkgSvc,
		Costs:     costsSvc,
		Catalog:   cat,
		Prices:    prices,
		Reset:     mem.Reset,
	}

	srv := httptest.NewServer(NewRouter(NewHandler(cogsSvc, pkgSvc, costsSvc, loader)))
	t.Cleanup(srv.Close)
	return srv, loader
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

// =============================================================================
// RULES
// =============================================================================

func TestBulkUpsertRules_PartialOutcomeOverHTTP(t *testing.T) {
	// GIVEN: A three-row batch with one malformed date
	// WHEN: POSTing to the bulk endpoint
	// THEN: 200 with inserted=2 failed=1, the bad row reported at its index

	srv, _ := newTestServer(t)

	body := `{"items":[
		{"entity_key":"SKU1","scope":"sku","valid_from":"2024-01-01","mode":"fixed","value":"40","currency":"RUB"},
		{"entity_key":"SKU2","scope":"sku","valid_from":"not-a-date","mode":"fixed","value":"10","currency":"RUB"},
		{"entity_key":"ALL","scope":"all","valid_from":"2024-01-01","mode":"fixed","value":"5","currency":"RUB"}
	]}`

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/cogs/rules/bulk", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var result BulkResultDTO
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Inserted != 2 || result.Failed != 1 || result.Outcome != "partial" {
		t.Errorf("unexpected accounting: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].RowIndex != 1 {
		t.Errorf("expected the failure at row 1, got %+v", result.Errors)
	}
}

func TestUpsertRule_CreatedThenUpdated(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"entity_key":"SKU1","scope":"sku","valid_from":"2024-01-01","mode":"fixed","value":"40","currency":"RUB"}`
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/cogs/rules", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first upsert: expected 201, got %d", resp.StatusCode)
	}

	// Same (entity_key, scope, valid_from) replaces in place.
	body = `{"entity_key":"SKU1","scope":"sku","valid_from":"2024-01-01","mode":"fixed","value":"45","currency":"RUB"}`
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/cogs/rules", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second upsert: expected 200, got %d", resp.StatusCode)
	}

	var dto RuleDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Value != "45" {
		t.Errorf("expected replaced value 45, got %s", dto.Value)
	}
}

func TestDeleteRule_SecondDeleteIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"entity_key":"SKU1","scope":"sku","valid_from":"2024-01-01","mode":"fixed","value":"40","currency":"RUB"}`
	_, raw := doJSON(t, http.MethodPost, srv.URL+"/api/cogs/rules", body)

	var dto RuleDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}

	url := fmt.Sprintf("%s/api/cogs/rules/%d", srv.URL, dto.ID)
	resp, _ := doJSON(t, http.MethodDelete, url, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("first delete: expected 204, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, url, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

// =============================================================================
// COVERAGE
// =============================================================================

func TestCoverageAndMissingSKUs(t *testing.T) {
	// GIVEN: A three-SKU catalog with one rule
	// WHEN: Asking for coverage and the missing list
	// THEN: 1/3 covered; the missing response carries prefill rows with
	//       blank values

	srv, loader := newTestServer(t)
	loader.Catalog.AddSKU(catalog.SKU{InternalSKU: "SKU1", NmID: "101", MarketplaceCode: "wb"})
	loader.Catalog.AddSKU(catalog.SKU{InternalSKU: "SKU2", NmID: "102", MarketplaceCode: "wb"})
	loader.Catalog.AddSKU(catalog.SKU{InternalSKU: "SKU3", NmID: "103", MarketplaceCode: "wb"})

	body := `{"entity_key":"SKU1","scope":"sku","valid_from":"2024-01-01","mode":"fixed","value":"40","currency":"RUB"}`
	doJSON(t, http.MethodPost, srv.URL+"/api/cogs/rules", body)

	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/cogs/coverage?as_of=2024-06-15", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("coverage: expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var cov CoverageDTO
	if err := json.Unmarshal(raw, &cov); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cov.InternalSKUsTotal != 3 || cov.CoveredTotal != 1 || cov.MissingTotal != 2 {
		t.Errorf("unexpected coverage: %+v", cov)
	}
	if !strings.HasPrefix(cov.CoveragePct, "33.33") {
		t.Errorf("expected ~33.33%%, got %s", cov.CoveragePct)
	}

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/cogs/missing-skus?as_of=2024-06-15", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("missing-skus: expected 200, got %d", resp.StatusCode)
	}

	var missing MissingSKUsDTO
	if err := json.Unmarshal(raw, &missing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if missing.Count != 2 || len(missing.Prefill) != 2 {
		t.Fatalf("unexpected missing list: %+v", missing)
	}
	for _, row := range missing.Prefill {
		if row.Value != "" {
			t.Errorf("prefill value must be blank, got %q for %s", row.Value, row.EntityKey)
		}
		if row.ValidFrom != "2024-06-15" {
			t.Errorf("prefill valid_from must echo as_of, got %s", row.ValidFrom)
		}
	}
}

func TestResolveCost_FallsBackToDefault(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/cogs/rules",
		`{"entity_key":"ALL","scope":"all","valid_from":"2024-01-01","mode":"fixed","value":"10","currency":"RUB"}`)

	resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/cogs/resolve?sku=SKU9&as_of=2024-06-01", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Amount      string `json:"amount"`
		FromDefault bool   `json:"from_default"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Amount != "10" || !out.FromDefault {
		t.Errorf("expected default 10, got %+v", out)
	}
}

func TestResolveCost_NoRuleIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/cogs/resolve?sku=SKU1&as_of=2024-06-01", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// =============================================================================
// PACKAGING
// =============================================================================

func TestPackagingSummaryOverHTTP(t *testing.T) {
	// GIVEN: One tariffed SKU and one without, both selling in June
	// WHEN: Asking for the June summary
	// THEN: The untariffed SKU is listed as missing, not dropped

	srv, loader := newTestServer(t)
	loader.Catalog.AddSale(catalog.Sale{SKU: "SKU1", Date: generic.NewTimePoint(2024, time.June, 10), Units: 4})
	loader.Catalog.AddSale(catalog.Sale{SKU: "SKU2", Date: generic.NewTimePoint(2024, time.June, 12), Units: 1})

	doJSON(t, http.MethodPost, srv.URL+"/api/packaging/tariffs",
		`{"sku":"SKU1","valid_from":"2024-01-01","cost_per_unit":"5","currency":"RUB"}`)

	resp, raw := doJSON(t, http.MethodGet,
		srv.URL+"/api/packaging/summary?date_from=2024-06-01&date_to=2024-06-30", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var summary PackagingSummaryDTO
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TotalCost != "20" {
		t.Errorf("expected total 20, got %s", summary.TotalCost)
	}
	if summary.MissingTariff.Count != 1 || summary.MissingTariff.SKUs[0] != "SKU2" {
		t.Errorf("unexpected missing tariffs: %+v", summary.MissingTariff)
	}
}

func TestBulkAssignTariffsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"skus":["SKU1","SKU2","SKU3"],"cost_per_unit":"4.20","currency":"RUB","valid_from":"2024-03-01"}`
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/packaging/tariffs/bulk", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var result BulkResultDTO
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Inserted != 3 || result.Outcome != "succeeded" {
		t.Errorf("unexpected accounting: %+v", result)
	}
}

// =============================================================================
// COSTS
// =============================================================================

func TestCostSummaryOverHTTP_Prorated(t *testing.T) {
	// GIVEN: 300 covering all of June (30 days)
	// WHEN: Summarizing a 10-day window
	// THEN: total_amount is 100.00

	srv, _ := newTestServer(t)

	body := `{"scope":"project","period_from":"2024-06-01","period_to":"2024-06-30",
		"amount":"300","currency":"RUB","category":"marketing"}`
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/costs", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet,
		srv.URL+"/api/costs/summary?date_from=2024-06-10&date_to=2024-06-19&group_by=project", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var summary CostSummaryDTO
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TotalAmount != "100" {
		t.Errorf("expected prorated total 100, got %s", summary.TotalAmount)
	}
	if len(summary.Breakdown) != 1 || summary.Breakdown[0].Category != "marketing" {
		t.Errorf("unexpected breakdown: %+v", summary.Breakdown)
	}
}

func TestCreateCost_InvalidPeriodIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"scope":"project","period_from":"2024-06-30","period_to":"2024-06-01",
		"amount":"300","currency":"RUB","category":"marketing"}`
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/costs", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_FullMonth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load", `{"scenario_id":"full-month"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load: expected 200, got %d: %s", resp.StatusCode, raw)
	}

	// Seeded rules are queryable afterward.
	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/cogs/resolve?sku=SKU1&as_of=2024-06-01", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Amount != "40" {
		t.Errorf("expected seeded 40, got %s", out.Amount)
	}

	// The mid-month tariff change shows up in the June summary:
	// SKU1: 3 units @ 5 + 2 units @ 7 = 29; SKU2: 10 units @ 3.50 = 35.
	resp, raw = doJSON(t, http.MethodGet,
		srv.URL+"/api/packaging/summary?date_from=2024-06-01&date_to=2024-06-30", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", resp.StatusCode)
	}

	var summary PackagingSummaryDTO
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := decimal.RequireFromString("64")
	got := decimal.RequireFromString(summary.TotalCost)
	if !got.Equal(want) {
		t.Errorf("expected total 64, got %s", summary.TotalCost)
	}
}

func TestLoadScenario_UnknownIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load", `{"scenario_id":"nope"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
