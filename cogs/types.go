/*
Package cogs implements COGS direct-cost rules on top of the generic engine.

PURPOSE:
  A COGS rule states what one unit of a SKU costs the seller, either as a
  fixed currency amount or as a percentage of an external price series.
  Rules are effective-dated and scoped: a SKU-specific rule always beats
  the "all SKUs" default.

MODE VARIANTS:
  The two modes have different required fields, so each is its own type
  behind the RuleValue interface instead of one struct with optional
  fields and ad hoc checks:

    FixedValue          amount + currency
    PercentOfPriceValue percent in [0,100] + price source code

SEE ALSO:
  - service.go: Resolution, coverage and bulk operations
*/
package cogs

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/generic"
)

// =============================================================================
// RULE VALUE VARIANTS
// =============================================================================

// RuleValue is the per-mode value of a rule. Each variant carries exactly
// the fields its mode requires.
type RuleValue interface {
	Mode() generic.RuleMode
	Validate() error
}

// FixedValue is an absolute per-unit amount.
type FixedValue struct {
	Amount generic.Money
}

func (v FixedValue) Mode() generic.RuleMode { return generic.ModeFixed }

func (v FixedValue) Validate() error {
	if v.Amount.Currency == "" {
		return &generic.ValidationError{Field: "currency", Message: "required for fixed rules"}
	}
	if v.Amount.Value.IsNegative() {
		return &generic.ValidationError{Field: "value", Message: "must not be negative"}
	}
	return nil
}

// PercentOfPriceValue is a percentage of an external price series.
type PercentOfPriceValue struct {
	Percent         decimal.Decimal
	PriceSourceCode string
}

func (v PercentOfPriceValue) Mode() generic.RuleMode { return generic.ModePercentOfPrice }

func (v PercentOfPriceValue) Validate() error {
	if v.PriceSourceCode == "" {
		return &generic.ValidationError{Field: "price_source_code", Message: "required for percent-of-price rules"}
	}
	if v.Percent.IsNegative() || v.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return &generic.ValidationError{Field: "value", Message: "percent must be in [0,100]"}
	}
	return nil
}

// ValueOf extracts the typed variant from a storage row.
func ValueOf(e generic.RuleEntry) (RuleValue, error) {
	switch e.Mode {
	case generic.ModeFixed:
		return FixedValue{Amount: generic.NewMoney(e.Value, e.Currency)}, nil
	case generic.ModePercentOfPrice:
		return PercentOfPriceValue{Percent: e.Value, PriceSourceCode: e.PriceSourceCode}, nil
	default:
		return nil, &generic.ValidationError{Field: "mode", Message: "unknown mode " + string(e.Mode)}
	}
}

// ValidateEntry is the per-row validator handed to the bulk processor and
// applied by single create/update.
func ValidateEntry(e generic.RuleEntry) error {
	if e.EntityKey == "" {
		return &generic.ValidationError{Field: "entity_key", Message: "required"}
	}
	switch e.Scope {
	case generic.ScopeSKU:
		// A SKU literally named "ALL" is legal; scope is the discriminant.
	case generic.ScopeAll:
		if e.EntityKey != generic.EntityKeyAll {
			return &generic.ValidationError{Field: "scope", Message: "scope 'all' requires the ALL entity key"}
		}
	default:
		return &generic.ValidationError{Field: "scope", Message: "unknown scope " + string(e.Scope)}
	}
	if e.ValidFrom.IsZero() {
		return &generic.ValidationError{Field: "valid_from", Message: "required"}
	}
	if e.ValidTo != nil && e.ValidTo.Before(e.ValidFrom) {
		return &generic.ValidationError{Field: "valid_to", Message: "must not precede valid_from"}
	}

	value, err := ValueOf(e)
	if err != nil {
		return err
	}
	return value.Validate()
}

// =============================================================================
// RESOLVED COST
// =============================================================================

// ResolvedCost is the outcome of valuing one SKU at one date.
type ResolvedCost struct {
	Amount generic.Money
	Rule   generic.RuleEntry

	// FromDefault is set when the ALL default supplied the rule.
	FromDefault bool
}

// PriceLookup resolves a price-source code and fetches a price.
// *pricing.Registry satisfies it.
type PriceLookup interface {
	PriceAt(ctx context.Context, code string, key generic.EntityKey, at generic.TimePoint) (generic.Money, error)
}

// CoverageReport is the read model behind the coverage endpoint.
type CoverageReport struct {
	InternalDataAvailable bool
	InternalSKUsTotal     int
	CoveredTotal          int
	MissingTotal          int
	CoveragePct           decimal.Decimal
}
