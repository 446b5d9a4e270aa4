/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Every monetary value is a decimal-safe string ("40.50"), never a native
  float. Parsing into decimal happens immediately on receipt, in the
  factory package.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/input.go: Wire-format parsing for the write paths
*/
package api

import (
	"time"

	"github.com/warp/tariff-engine/costs"
	"github.com/warp/tariff-engine/factory"
	"github.com/warp/tariff-engine/generic"
	"github.com/warp/tariff-engine/packaging"
)

// =============================================================================
// SHARED
// =============================================================================

// ErrorResponse is the error envelope for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ListResponse wraps a page of items with the total match count.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// RowErrorDTO is one failed row of a bulk operation.
type RowErrorDTO struct {
	RowIndex  int    `json:"row_index"`
	EntityKey string `json:"entity_key,omitempty"`
	Message   string `json:"message"`
}

// BulkResultDTO reports per-row bulk accounting. Outcome is one of
// "succeeded", "partial", "failed".
type BulkResultDTO struct {
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Outcome  string        `json:"outcome"`
	Errors   []RowErrorDTO `json:"errors"`
}

func toBulkResultDTO(r generic.BulkUpsertResult) BulkResultDTO {
	dto := BulkResultDTO{
		Inserted: r.Inserted,
		Updated:  r.Updated,
		Failed:   r.Failed,
		Outcome:  r.Outcome(),
		Errors:   make([]RowErrorDTO, 0, len(r.Errors)),
	}
	for _, e := range r.Errors {
		dto.Errors = append(dto.Errors, RowErrorDTO{
			RowIndex:  e.RowIndex,
			EntityKey: string(e.EntityKey),
			Message:   e.Message,
		})
	}
	return dto
}

// =============================================================================
// COGS RULES
// =============================================================================

// RuleDTO represents a rule row in API responses.
type RuleDTO struct {
	ID              int64  `json:"id"`
	EntityKey       string `json:"entity_key"`
	Scope           string `json:"scope"`
	ValidFrom       string `json:"valid_from"`
	ValidTo         string `json:"valid_to,omitempty"`
	Mode            string `json:"mode"`
	Value           string `json:"value"`
	Currency        string `json:"currency,omitempty"`
	PriceSourceCode string `json:"price_source_code,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

func toRuleDTO(e generic.RuleEntry) RuleDTO {
	dto := RuleDTO{
		ID:              e.ID,
		EntityKey:       string(e.EntityKey),
		Scope:           string(e.Scope),
		ValidFrom:       e.ValidFrom.String(),
		Mode:            string(e.Mode),
		Value:           e.Value.String(),
		Currency:        e.Currency,
		PriceSourceCode: e.PriceSourceCode,
	}
	if e.ValidTo != nil {
		dto.ValidTo = e.ValidTo.String()
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// BulkRulesRequest is the bulk upsert envelope.
type BulkRulesRequest struct {
	Items []factory.RuleInputJSON `json:"items"`
}

// CoverageDTO is the coverage read model.
type CoverageDTO struct {
	InternalDataAvailable bool   `json:"internal_data_available"`
	InternalSKUsTotal     int    `json:"internal_skus_total"`
	CoveredTotal          int    `json:"covered_total"`
	MissingTotal          int    `json:"missing_total"`
	CoveragePct           string `json:"coverage_pct"`
}

// MissingSKUsDTO lists uncovered SKUs plus prefill rows for the bulk
// "fill the gaps" flow: sku filled, value blank, to be completed
// client-side before resubmission.
type MissingSKUsDTO struct {
	Count   int                     `json:"count"`
	SKUs    []string                `json:"skus"`
	Prefill []factory.RuleInputJSON `json:"prefill"`
}

// =============================================================================
// PACKAGING TARIFFS
// =============================================================================

// TariffDTO represents a tariff point in API responses.
type TariffDTO struct {
	ID          int64  `json:"id"`
	SKU         string `json:"sku"`
	ValidFrom   string `json:"valid_from"`
	CostPerUnit string `json:"cost_per_unit"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func toTariffDTO(p generic.TariffPoint) TariffDTO {
	dto := TariffDTO{
		ID:          p.ID,
		SKU:         string(p.SKU),
		ValidFrom:   p.ValidFrom.String(),
		CostPerUnit: p.CostPerUnit.String(),
		Currency:    p.Currency,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// BulkAssignRequest applies one rate to N SKUs from one date.
type BulkAssignRequest struct {
	SKUs        []string `json:"skus"`
	CostPerUnit string   `json:"cost_per_unit"`
	Currency    string   `json:"currency"`
	ValidFrom   string   `json:"valid_from"`
}

// PackagingSummaryDTO is the packaging summary read model.
type PackagingSummaryDTO struct {
	TotalCost     string           `json:"total_cost"`
	PerSKU        []SKUCostDTO     `json:"per_sku"`
	MissingTariff MissingTariffDTO `json:"missing_tariff"`
}

type SKUCostDTO struct {
	SKU   string `json:"sku"`
	Units int    `json:"units"`
	Cost  string `json:"cost"`
}

type MissingTariffDTO struct {
	Count int      `json:"count"`
	SKUs  []string `json:"skus"`
}

func toPackagingSummaryDTO(s packaging.Summary) PackagingSummaryDTO {
	dto := PackagingSummaryDTO{
		TotalCost: s.TotalCost.Round(2).String(),
		PerSKU:    make([]SKUCostDTO, 0, len(s.PerSKU)),
		MissingTariff: MissingTariffDTO{
			Count: s.MissingTariff.Count,
			SKUs:  make([]string, 0, len(s.MissingTariff.SKUs)),
		},
	}
	for _, row := range s.PerSKU {
		dto.PerSKU = append(dto.PerSKU, SKUCostDTO{
			SKU:   string(row.SKU),
			Units: row.Units,
			Cost:  row.Cost.Round(2).String(),
		})
	}
	for _, sku := range s.MissingTariff.SKUs {
		dto.MissingTariff.SKUs = append(dto.MissingTariff.SKUs, string(sku))
	}
	return dto
}

// =============================================================================
// COST ENTRIES
// =============================================================================

// CostDTO represents a cost entry in API responses.
type CostDTO struct {
	ID              string `json:"id"`
	Scope           string `json:"scope"`
	MarketplaceCode string `json:"marketplace_code,omitempty"`
	InternalSKU     string `json:"internal_sku,omitempty"`
	NmID            string `json:"nm_id,omitempty"`
	PeriodFrom      string `json:"period_from"`
	PeriodTo        string `json:"period_to"`
	DateIncurred    string `json:"date_incurred,omitempty"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Category        string `json:"category"`
	Subcategory     string `json:"subcategory,omitempty"`
}

func toCostDTO(e generic.CostEntry) CostDTO {
	dto := CostDTO{
		ID:              e.ID,
		Scope:           string(e.Scope),
		MarketplaceCode: e.MarketplaceCode,
		InternalSKU:     e.InternalSKU,
		NmID:            e.NmID,
		PeriodFrom:      e.PeriodFrom.String(),
		PeriodTo:        e.PeriodTo.String(),
		Amount:          e.Amount.Value.String(),
		Currency:        e.Amount.Currency,
		Category:        e.Category,
		Subcategory:     e.Subcategory,
	}
	if e.DateIncurred != nil {
		dto.DateIncurred = e.DateIncurred.String()
	}
	return dto
}

// CostSummaryDTO is the cost summary read model.
type CostSummaryDTO struct {
	TotalAmount string       `json:"total_amount"`
	Breakdown   []CostRowDTO `json:"breakdown"`
}

type CostRowDTO struct {
	MarketplaceCode string `json:"marketplace_code,omitempty"`
	InternalSKU     string `json:"internal_sku,omitempty"`
	NmID            string `json:"nm_id,omitempty"`
	Category        string `json:"category"`
	Subcategory     string `json:"subcategory,omitempty"`
	Amount          string `json:"amount"`
	General         bool   `json:"general,omitempty"`
}

func toCostSummaryDTO(s costs.Summary) CostSummaryDTO {
	dto := CostSummaryDTO{
		TotalAmount: s.TotalAmount.Round(2).String(),
		Breakdown:   make([]CostRowDTO, 0, len(s.Breakdown)),
	}
	for _, row := range s.Breakdown {
		dto.Breakdown = append(dto.Breakdown, CostRowDTO{
			MarketplaceCode: row.MarketplaceCode,
			InternalSKU:     row.InternalSKU,
			NmID:            row.NmID,
			Category:        row.Category,
			Subcategory:     row.Subcategory,
			Amount:          row.Amount.Round(2).String(),
			General:         row.General,
		})
	}
	return dto
}
