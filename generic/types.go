/*
Package generic provides the core temporal rule resolution engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for resolving
  versioned, effective-dated business rules and prorating period-bounded
  monetary amounts. Whether the rule is a COGS rate, a packaging tariff or
  an additional-cost classification, the same engine handles as-of-date
  resolution, proration across query windows, aggregation and coverage.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount with an opaque currency tag (never converted)
  - RuleEntry: One version of an effective-dated rule for an entity
  - TariffPoint: One step of a supersede-only tariff timeline
  - CostEntry: A period-bounded monetary amount with a classification

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal everywhere; rounding happens only at
     the display boundary, never mid-computation
  2. Explicit scope: the "applies to all" sentinel is an enum discriminant,
     not an overload of the entity key value space
  3. Pure resolution: resolvers and proration are side-effect free over
     input snapshots, safe to run in parallel

SEE ALSO:
  - resolver.go: As-of-date resolution and scope precedence
  - proration.go: Whole-day proration
  - aggregate.go: Group-by accumulation
  - coverage.go: Catalog coverage statistics
  - bulk.go: Per-row bulk upsert
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount with opaque currency tag
// =============================================================================

type Money struct {
	Value    decimal.Decimal
	Currency string
}

func NewMoney(value decimal.Decimal, currency string) Money {
	return Money{Value: value, Currency: currency}
}

// ParseMoney parses a decimal-safe string as received on the wire.
// Monetary values never cross the boundary as native floats.
func ParseMoney(s, currency string) (Money, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Message: "not a decimal: " + s}
	}
	return Money{Value: v, Currency: currency}, nil
}

func (m Money) Add(o Money) Money             { return Money{Value: m.Value.Add(o.Value), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money   { return Money{Value: m.Value.Mul(s), Currency: m.Currency} }
func (m Money) IsZero() bool                  { return m.Value.IsZero() }
func (m Money) Zero() Money                   { return Money{Value: decimal.Zero, Currency: m.Currency} }

// Rounded returns the display form, 2 decimal places. Callers round once,
// at the boundary.
func (m Money) Rounded() decimal.Decimal { return m.Value.Round(2) }

func (m Money) String() string {
	if m.Currency == "" {
		return m.Value.String()
	}
	return m.Value.String() + " " + m.Currency
}

// =============================================================================
// IDENTIFIERS AND ENUMS
// =============================================================================

// EntityKey identifies the target of a rule: a SKU code, or the sentinel
// stored alongside ScopeAll. Code must branch on Scope, never on the key
// value, so a real SKU literally named "ALL" cannot collide.
type EntityKey string

// EntityKeyAll is the stored key for default rules. It is only meaningful
// when paired with ScopeAll.
const EntityKeyAll EntityKey = "ALL"

type Scope string

const (
	ScopeSKU Scope = "sku" // Rule targets one specific SKU
	ScopeAll Scope = "all" // Default rule for every SKU in scope
)

type RuleMode string

const (
	ModeFixed          RuleMode = "fixed"            // Absolute currency amount
	ModePercentOfPrice RuleMode = "percent_of_price" // Percentage of an external price series
)

// =============================================================================
// RULE ENTRY - One version of an effective-dated rule
// =============================================================================

// RuleEntry is the storage row shared by COGS rules and any other
// effective-dated rule family. ValidTo == nil means open-ended.
//
// Invariant: for a given (EntityKey, Scope) pair, validity intervals must
// not overlap. Input is user-supplied, so the resolver still tie-breaks
// defensively (see ResolveTimeline).
type RuleEntry struct {
	ID        int64
	EntityKey EntityKey
	Scope     Scope
	ValidFrom TimePoint
	ValidTo   *TimePoint

	Mode  RuleMode
	Value decimal.Decimal // currency amount (fixed) or percent in [0,100]

	Currency        string // required when Mode == ModeFixed
	PriceSourceCode string // required when Mode == ModePercentOfPrice

	CreatedAt time.Time
}

// ActiveAt reports whether the entry's validity window contains the date.
func (e RuleEntry) ActiveAt(at TimePoint) bool {
	if at.Before(e.ValidFrom) {
		return false
	}
	return e.ValidTo == nil || at.BeforeOrEqual(*e.ValidTo)
}

// =============================================================================
// TARIFF POINT - Supersede-only timeline step
// =============================================================================

// TariffPoint is one step of a tariff timeline: valid from its date until
// superseded by the next later point. There is no ValidTo. Before the first
// point of a timeline the effective cost is zero, by policy.
type TariffPoint struct {
	ID          int64
	SKU         EntityKey
	ValidFrom   TimePoint
	CostPerUnit decimal.Decimal
	Currency    string
	CreatedAt   time.Time
}

// =============================================================================
// COST ENTRY - Period-bounded monetary amount
// =============================================================================

type CostScope string

const (
	CostScopeProject     CostScope = "project"
	CostScopeMarketplace CostScope = "marketplace"
	CostScopeProduct     CostScope = "product"
)

// CostEntry is an additional cost covering an inclusive date range, e.g. a
// monthly marketing invoice. Proration treats the amount as uniformly
// spread across every day of [PeriodFrom, PeriodTo].
type CostEntry struct {
	ID    string
	Scope CostScope

	MarketplaceCode string // required when Scope == CostScopeMarketplace
	InternalSKU     string // required when Scope == CostScopeProduct
	NmID            string // marketplace-side product id, informational

	PeriodFrom   TimePoint
	PeriodTo     TimePoint
	DateIncurred *TimePoint // informational only, not used in proration

	Amount      Money
	Category    string
	Subcategory string

	CreatedAt time.Time
}

// Period returns the inclusive coverage period.
func (e CostEntry) Period() Period {
	return Period{From: e.PeriodFrom, To: e.PeriodTo}
}
