/*
Package factory converts wire-format JSON rows into engine types.

PURPOSE:
  All monetary values cross the API boundary as decimal-safe strings,
  never native floats. This package is the single place where those
  strings, the YYYY-MM-DD dates and the enum tags are parsed into typed
  rows. Both the single-row handlers and the bulk endpoints go through
  it, so a malformed bulk row fails at its own index with the same
  message a single create would produce.

JSON SCHEMA (rule row):
  {
    "entity_key": "SKU1",           // or "ALL" with scope "all"
    "scope": "sku" | "all",
    "valid_from": "2024-01-01",
    "valid_to": "2024-12-31",       // optional, open-ended when absent
    "mode": "fixed" | "percent_of_price",
    "value": "40.50",               // decimal string
    "currency": "RUB",              // fixed mode
    "price_source_code": "wb_price" // percent mode
  }

SEE ALSO:
  - api/dto.go: The request envelopes carrying these rows
  - generic/bulk.go: Consumes the parsed rows with per-row isolation
*/
package factory

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleInputJSON is one rule row as received on the wire.
type RuleInputJSON struct {
	EntityKey       string `json:"entity_key"`
	Scope           string `json:"scope"`
	ValidFrom       string `json:"valid_from"`
	ValidTo         string `json:"valid_to,omitempty"`
	Mode            string `json:"mode"`
	Value           string `json:"value"`
	Currency        string `json:"currency,omitempty"`
	PriceSourceCode string `json:"price_source_code,omitempty"`
}

// CostInputJSON is one cost entry as received on the wire.
type CostInputJSON struct {
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

// TariffInputJSON is one tariff point as received on the wire.
type TariffInputJSON struct {
	SKU         string `json:"sku"`
	ValidFrom   string `json:"valid_from"`
	CostPerUnit string `json:"cost_per_unit"`
	Currency    string `json:"currency"`
}

// =============================================================================
// PARSERS
// =============================================================================

// ParseRuleInput converts one wire row into a RuleEntry. A blank value is
// a parse error: "fill the gaps" prefill rows ship with it empty and must
// be completed client-side before resubmission, so an unfilled row fails
// at its own index instead of writing a zero-valued rule.
func ParseRuleInput(in RuleInputJSON) (generic.RuleEntry, error) {
	e := generic.RuleEntry{
		EntityKey:       generic.EntityKey(in.EntityKey),
		Scope:           generic.Scope(in.Scope),
		Mode:            generic.RuleMode(in.Mode),
		Currency:        in.Currency,
		PriceSourceCode: in.PriceSourceCode,
	}

	from, err := generic.ParseDate(in.ValidFrom)
	if err != nil {
		return e, &generic.ValidationError{Field: "valid_from", Message: "expected YYYY-MM-DD, got " + in.ValidFrom}
	}
	e.ValidFrom = from

	if in.ValidTo != "" {
		to, err := generic.ParseDate(in.ValidTo)
		if err != nil {
			return e, &generic.ValidationError{Field: "valid_to", Message: "expected YYYY-MM-DD, got " + in.ValidTo}
		}
		e.ValidTo = &to
	}

	if in.Value == "" {
		return e, &generic.ValidationError{Field: "value", Message: "required"}
	}
	v, err := decimal.NewFromString(in.Value)
	if err != nil {
		return e, &generic.ValidationError{Field: "value", Message: "not a decimal: " + in.Value}
	}
	e.Value = v
	return e, nil
}

// ParseRuleRows converts a batch, carrying per-row parse failures so the
// bulk processor reports them at their index instead of rejecting the
// whole request.
func ParseRuleRows(ins []RuleInputJSON) []generic.BulkRow {
	rows := make([]generic.BulkRow, len(ins))
	for i, in := range ins {
		entry, err := ParseRuleInput(in)
		rows[i] = generic.BulkRow{Entry: entry, ParseErr: err}
	}
	return rows
}

// ParseCostInput converts one wire cost entry.
func ParseCostInput(in CostInputJSON) (generic.CostEntry, error) {
	e := generic.CostEntry{
		Scope:           generic.CostScope(in.Scope),
		MarketplaceCode: in.MarketplaceCode,
		InternalSKU:     in.InternalSKU,
		NmID:            in.NmID,
		Category:        in.Category,
		Subcategory:     in.Subcategory,
	}

	from, err := generic.ParseDate(in.PeriodFrom)
	if err != nil {
		return e, &generic.ValidationError{Field: "period_from", Message: "expected YYYY-MM-DD, got " + in.PeriodFrom}
	}
	to, err := generic.ParseDate(in.PeriodTo)
	if err != nil {
		return e, &generic.ValidationError{Field: "period_to", Message: "expected YYYY-MM-DD, got " + in.PeriodTo}
	}
	e.PeriodFrom, e.PeriodTo = from, to

	if in.DateIncurred != "" {
		at, err := generic.ParseDate(in.DateIncurred)
		if err != nil {
			return e, &generic.ValidationError{Field: "date_incurred", Message: "expected YYYY-MM-DD, got " + in.DateIncurred}
		}
		e.DateIncurred = &at
	}

	amount, err := generic.ParseMoney(in.Amount, in.Currency)
	if err != nil {
		return e, err
	}
	e.Amount = amount
	return e, nil
}

// ParseTariffInput converts one wire tariff point.
func ParseTariffInput(in TariffInputJSON) (generic.TariffPoint, error) {
	p := generic.TariffPoint{
		SKU:      generic.EntityKey(in.SKU),
		Currency: in.Currency,
	}

	from, err := generic.ParseDate(in.ValidFrom)
	if err != nil {
		return p, &generic.ValidationError{Field: "valid_from", Message: "expected YYYY-MM-DD, got " + in.ValidFrom}
	}
	p.ValidFrom = from

	cost, err := decimal.NewFromString(in.CostPerUnit)
	if err != nil {
		return p, &generic.ValidationError{Field: "cost_per_unit", Message: "not a decimal: " + in.CostPerUnit}
	}
	p.CostPerUnit = cost
	return p, nil
}
