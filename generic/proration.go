/*
proration.go - Whole-day proration of period-bounded amounts

PURPOSE:
  Splits a monetary amount covering an inclusive date range proportionally
  across the days of a query window that overlap the range.

ARITHMETIC:
  overlap_days = max(0, min(period.to, window.to) - max(period.from, window.from) + 1)
  entry_days   = period.to - period.from + 1
  result       = amount * overlap_days / entry_days

  All intermediate values are decimal.Decimal. Rounding to 2 places happens
  only at the aggregation/display boundary, never here; this is what makes
  proration additive across adjacent sub-windows without cent-level drift.

EDGE CASES:
  - Single-day period: the full amount when that day is in the window, zero otherwise
  - Period fully outside the window: exactly zero
  - Period fully inside the window: exactly the full amount

SEE ALSO:
  - aggregate.go: Sums prorated contributions and rounds at the boundary
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// Prorate returns the fraction of amount attributable to the overlap of the
// coverage period with the query window. Pure function.
func Prorate(amount decimal.Decimal, period Period, window Period) decimal.Decimal {
	overlap, ok := period.Overlap(window)
	if !ok {
		return decimal.Zero
	}

	entryDays := period.Days()
	overlapDays := overlap.Days()
	if overlapDays >= entryDays {
		// Fully inside the window: return the amount untouched so no
		// division artifacts are introduced.
		return amount
	}

	return amount.
		Mul(decimal.NewFromInt(int64(overlapDays))).
		Div(decimal.NewFromInt(int64(entryDays)))
}

// ProrateMoney is Prorate preserving the currency tag.
func ProrateMoney(m Money, period Period, window Period) Money {
	return Money{Value: Prorate(m.Value, period, window), Currency: m.Currency}
}

// ProrateEntry prorates a cost entry against a query window.
func ProrateEntry(e CostEntry, window Period) Money {
	return ProrateMoney(e.Amount, e.Period(), window)
}
