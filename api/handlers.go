/*
handlers.go - HTTP API handlers for the tariff engine

PURPOSE:
  Exposes the cost engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  COGS rules:
    GET    /api/cogs/rules             List rules (search + paging)
    POST   /api/cogs/rules             Upsert one rule
    PUT    /api/cogs/rules/{id}        Update rule by row id
    DELETE /api/cogs/rules/{id}        Delete rule by row id
    POST   /api/cogs/rules/bulk        Bulk upsert with per-row accounting
    GET    /api/cogs/coverage          Coverage report (as_of, force)
    GET    /api/cogs/missing-skus      Missing SKUs + prefill rows
    GET    /api/cogs/resolve           Resolve one SKU at one date

  Packaging tariffs:
    GET    /api/packaging/tariffs      List tariff points
    POST   /api/packaging/tariffs      Upsert one point
    DELETE /api/packaging/tariffs/{id} Delete point by id
    POST   /api/packaging/tariffs/bulk Assign one rate to N SKUs
    GET    /api/packaging/summary      Window summary per SKU

  Cost entries:
    GET    /api/costs                  List entries
    POST   /api/costs                  Create entry
    PUT    /api/costs/{id}             Update entry
    DELETE /api/costs/{id}             Delete entry (idempotent)
    GET    /api/costs/summary          Prorated, grouped summary

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, malformed dates/decimals, invalid period
  - 404: Row not found (deletes are idempotent: a second delete is 404)
  - 502: Price source unavailable
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - factory/input.go: Wire-format parsing
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/cogs"
	"github.com/warp/tariff-engine/costs"
	"github.com/warp/tariff-engine/factory"
	"github.com/warp/tariff-engine/generic"
	"github.com/warp/tariff-engine/packaging"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	COGS      *cogs.Service
	Packaging *packaging.Service
	Costs     *costs.Service

	// Track currently loaded demo scenario
	currentScenario string
	scenarios       *ScenarioLoader
}

// NewHandler creates a new handler over the three domain services.
func NewHandler(cogsSvc *cogs.Service, pkgSvc *packaging.Service, costsSvc *costs.Service, scenarios *ScenarioLoader) *Handler {
	return &Handler{
		COGS:      cogsSvc,
		Packaging: pkgSvc,
		Costs:     costsSvc,
		scenarios: scenarios,
	}
}

// =============================================================================
// COGS RULE HANDLERS
// =============================================================================

// ListRules returns a page of rules.
// GET /api/cogs/rules?search=&limit=&offset=
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	search, limit, offset := listParams(r)

	rules, total, err := h.COGS.List(r.Context(), search, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, e := range rules {
		dtos[i] = toRuleDTO(e)
	}
	writeJSON(w, http.StatusOK, ListResponse[RuleDTO]{Items: dtos, Total: total})
}

// UpsertRule creates or replaces one rule keyed by (entity_key, scope, valid_from).
// POST /api/cogs/rules
func (h *Handler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	var req factory.RuleInputJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := factory.ParseRuleInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}

	stored, created, err := h.COGS.Upsert(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to upsert rule", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toRuleDTO(stored))
}

// UpdateRule replaces a rule by row id.
// PUT /api/cogs/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule id", err)
		return
	}

	var req factory.RuleInputJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := factory.ParseRuleInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}
	entry.ID = id

	if err := h.COGS.Update(r.Context(), entry); err != nil {
		writeDomainError(w, "Failed to update rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(entry))
}

// DeleteRule removes a rule by row id. A second delete of the same id is 404.
// DELETE /api/cogs/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule id", err)
		return
	}

	if err := h.COGS.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkUpsertRules applies a batch with per-row isolation. The HTTP status is
// 200 for every accepted batch; the per-row outcome lives in the body so a
// partial failure still delivers its accounting.
// POST /api/cogs/rules/bulk
func (h *Handler) BulkUpsertRules(w http.ResponseWriter, r *http.Request) {
	var req BulkRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Empty batch", nil)
		return
	}

	result, err := h.COGS.BulkUpsert(r.Context(), factory.ParseRuleRows(req.Items))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Bulk upsert aborted", err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(result))
}

// GetCoverage reports rule coverage over the SKU catalog.
// GET /api/cogs/coverage?as_of=YYYY-MM-DD&force=true
func (h *Handler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	report, err := h.COGS.Coverage(r.Context(), asOf, force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute coverage", err)
		return
	}

	writeJSON(w, http.StatusOK, CoverageDTO{
		InternalDataAvailable: report.InternalDataAvailable,
		InternalSKUsTotal:     report.InternalSKUsTotal,
		CoveredTotal:          report.CoveredTotal,
		MissingTotal:          report.MissingTotal,
		CoveragePct:           report.CoveragePct.Round(2).String(),
	})
}

// GetMissingSKUs lists uncovered SKUs with prefill rows for the bulk
// "fill the gaps" flow.
// GET /api/cogs/missing-skus?as_of=YYYY-MM-DD&limit=100
func (h *Handler) GetMissingSKUs(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}
	limit := intParam(r, "limit", 100)

	skus, err := h.COGS.MissingSKUs(r.Context(), asOf, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list missing SKUs", err)
		return
	}

	resp := MissingSKUsDTO{
		Count:   len(skus),
		SKUs:    make([]string, 0, len(skus)),
		Prefill: make([]factory.RuleInputJSON, 0, len(skus)),
	}
	for _, sku := range skus {
		resp.SKUs = append(resp.SKUs, string(sku))
		// Value stays blank: the parser rejects unfilled rows so they fail
		// at their own index instead of writing zero-valued rules.
		resp.Prefill = append(resp.Prefill, factory.RuleInputJSON{
			EntityKey: string(sku),
			Scope:     string(generic.ScopeSKU),
			ValidFrom: asOf.String(),
			Mode:      string(generic.ModeFixed),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResolveCost values one SKU at one date.
// GET /api/cogs/resolve?sku=SKU1&as_of=YYYY-MM-DD
func (h *Handler) ResolveCost(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")
	if sku == "" {
		writeError(w, http.StatusBadRequest, "Missing sku parameter", nil)
		return
	}
	asOf, err := asOfParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return
	}

	resolved, err := h.COGS.ResolveCost(r.Context(), generic.EntityKey(sku), asOf)
	if err != nil {
		writeDomainError(w, "Failed to resolve cost", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sku":          sku,
		"as_of":        asOf.String(),
		"amount":       resolved.Amount.Value.Round(2).String(),
		"currency":     resolved.Amount.Currency,
		"from_default": resolved.FromDefault,
		"rule":         toRuleDTO(resolved.Rule),
	})
}

// =============================================================================
// PACKAGING TARIFF HANDLERS
// =============================================================================

// ListTariffs returns a page of tariff points.
// GET /api/packaging/tariffs?search=&limit=&offset=
func (h *Handler) ListTariffs(w http.ResponseWriter, r *http.Request) {
	search, limit, offset := listParams(r)

	points, total, err := h.Packaging.List(r.Context(), search, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tariffs", err)
		return
	}

	dtos := make([]TariffDTO, len(points))
	for i, p := range points {
		dtos[i] = toTariffDTO(p)
	}
	writeJSON(w, http.StatusOK, ListResponse[TariffDTO]{Items: dtos, Total: total})
}

// UpsertTariff creates or replaces one point keyed by (sku, valid_from).
// POST /api/packaging/tariffs
func (h *Handler) UpsertTariff(w http.ResponseWriter, r *http.Request) {
	var req factory.TariffInputJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	point, err := factory.ParseTariffInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tariff point", err)
		return
	}

	created, err := h.Packaging.AddPoint(r.Context(), point)
	if err != nil {
		writeDomainError(w, "Failed to upsert tariff", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toTariffDTO(point))
}

// DeleteTariff removes a point by id.
// DELETE /api/packaging/tariffs/{id}
func (h *Handler) DeleteTariff(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tariff id", err)
		return
	}

	if err := h.Packaging.DeletePoint(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete tariff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkAssignTariffs applies one rate to N SKUs from one date.
// POST /api/packaging/tariffs/bulk
func (h *Handler) BulkAssignTariffs(w http.ResponseWriter, r *http.Request) {
	var req BulkAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.SKUs) == 0 {
		writeError(w, http.StatusBadRequest, "Empty SKU list", nil)
		return
	}

	cost, err := decimal.NewFromString(req.CostPerUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost_per_unit (use a decimal string)", err)
		return
	}
	from, err := generic.ParseDate(req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_from date (use YYYY-MM-DD)", err)
		return
	}

	skus := make([]generic.EntityKey, len(req.SKUs))
	for i, s := range req.SKUs {
		skus[i] = generic.EntityKey(s)
	}

	result, err := h.Packaging.BulkAssign(r.Context(), skus, cost, req.Currency, from)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Bulk assign aborted", err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(result))
}

// GetPackagingSummary aggregates packaging cost over a window.
// GET /api/packaging/summary?date_from=YYYY-MM-DD&date_to=YYYY-MM-DD
func (h *Handler) GetPackagingSummary(w http.ResponseWriter, r *http.Request) {
	window, err := windowParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	summary, err := h.Packaging.Summary(r.Context(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toPackagingSummaryDTO(summary))
}

// =============================================================================
// COST ENTRY HANDLERS
// =============================================================================

// ListCosts returns a page of cost entries.
// GET /api/costs?search=&limit=&offset=
func (h *Handler) ListCosts(w http.ResponseWriter, r *http.Request) {
	search, limit, offset := listParams(r)

	entries, total, err := h.Costs.List(r.Context(), search, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list costs", err)
		return
	}

	dtos := make([]CostDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toCostDTO(e)
	}
	writeJSON(w, http.StatusOK, ListResponse[CostDTO]{Items: dtos, Total: total})
}

// CreateCost inserts a new cost entry.
// POST /api/costs
func (h *Handler) CreateCost(w http.ResponseWriter, r *http.Request) {
	var req factory.CostInputJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := factory.ParseCostInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost entry", err)
		return
	}

	created, err := h.Costs.Create(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Failed to create cost entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCostDTO(created))
}

// UpdateCost replaces an entry by id.
// PUT /api/costs/{id}
func (h *Handler) UpdateCost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req factory.CostInputJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := factory.ParseCostInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost entry", err)
		return
	}
	entry.ID = id

	if err := h.Costs.Update(r.Context(), entry); err != nil {
		writeDomainError(w, "Failed to update cost entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostDTO(entry))
}

// DeleteCost removes an entry by id. A second delete of the same id is 404.
// DELETE /api/costs/{id}
func (h *Handler) DeleteCost(w http.ResponseWriter, r *http.Request) {
	if err := h.Costs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete cost entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCostSummary returns the prorated, grouped cost summary.
// GET /api/costs/summary?date_from=&date_to=&group_by=project&marketplace_code=
func (h *Handler) GetCostSummary(w http.ResponseWriter, r *http.Request) {
	window, err := windowParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	groupBy := costs.GroupBy(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		groupBy = costs.GroupByProject
	}
	marketplace := r.URL.Query().Get("marketplace_code")

	summary, err := h.Costs.Summarize(r.Context(), window, groupBy, marketplace)
	if err != nil {
		writeDomainError(w, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostSummaryDTO(summary))
}

// =============================================================================
// REQUEST PARSING HELPERS
// =============================================================================

// listParams extracts the common search/limit/offset triple.
func listParams(r *http.Request) (string, int, int) {
	return r.URL.Query().Get("search"), intParam(r, "limit", 50), intParam(r, "offset", 0)
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// asOfParam reads as_of, defaulting to today.
func asOfParam(r *http.Request) (generic.TimePoint, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return generic.Today(), nil
	}
	return generic.ParseDate(raw)
}

// windowParams reads the date_from/date_to pair into an inclusive period.
func windowParams(r *http.Request) (generic.Period, error) {
	from, err := generic.ParseDate(r.URL.Query().Get("date_from"))
	if err != nil {
		return generic.Period{}, &generic.ValidationError{Field: "date_from", Message: "expected YYYY-MM-DD"}
	}
	to, err := generic.ParseDate(r.URL.Query().Get("date_to"))
	if err != nil {
		return generic.Period{}, &generic.ValidationError{Field: "date_to", Message: "expected YYYY-MM-DD"}
	}
	return generic.NewPeriod(from, to)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsValidation(err), errors.Is(err, generic.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsNotFound(err), errors.Is(err, generic.ErrNoRuleFound):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsDegraded(err):
		writeError(w, http.StatusBadGateway, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
