package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/generic"
)

func period(from, to generic.TimePoint) generic.Period {
	return generic.Period{From: from, To: to}
}

func TestProrate_TenOfThirtyDays(t *testing.T) {
	// GIVEN: 300 covering 2024-06-01..2024-06-30 (30 days)
	// WHEN: Prorated against the window 2024-06-10..2024-06-19 (10 days)
	// THEN: Exactly 100.00

	amount := decimal.NewFromInt(300)
	coverage := period(date(2024, time.June, 1), date(2024, time.June, 30))
	window := period(date(2024, time.June, 10), date(2024, time.June, 19))

	got := generic.Prorate(amount, coverage, window)
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected 100, got %s", got)
	}
}

func TestProrate_FullyOutsideWindow_IsExactlyZero(t *testing.T) {
	amount := decimal.NewFromInt(300)
	coverage := period(date(2024, time.June, 1), date(2024, time.June, 30))
	window := period(date(2024, time.July, 1), date(2024, time.July, 31))

	got := generic.Prorate(amount, coverage, window)
	if !got.IsZero() {
		t.Errorf("expected exactly zero, got %s", got)
	}
}

func TestProrate_FullyInsideWindow_IsFullAmount(t *testing.T) {
	// The amount must come back untouched, with no division artifacts.
	amount := decimal.RequireFromString("123.45")
	coverage := period(date(2024, time.June, 5), date(2024, time.June, 10))
	window := period(date(2024, time.June, 1), date(2024, time.June, 30))

	got := generic.Prorate(amount, coverage, window)
	if !got.Equal(amount) {
		t.Errorf("expected %s, got %s", amount, got)
	}
}

func TestProrate_SingleDayPeriod_AllOrNothing(t *testing.T) {
	amount := decimal.NewFromInt(50)
	coverage := period(date(2024, time.June, 15), date(2024, time.June, 15))

	inside := generic.Prorate(amount, coverage, period(date(2024, time.June, 1), date(2024, time.June, 30)))
	if !inside.Equal(amount) {
		t.Errorf("single day inside window: expected %s, got %s", amount, inside)
	}

	outside := generic.Prorate(amount, coverage, period(date(2024, time.July, 1), date(2024, time.July, 31)))
	if !outside.IsZero() {
		t.Errorf("single day outside window: expected zero, got %s", outside)
	}
}

func TestProrate_AdditiveAcrossSplitWindows(t *testing.T) {
	// GIVEN: An entry and a window split at every possible mid point
	// WHEN: Prorating [from, mid] plus [mid+1, to]
	// THEN: The sum equals prorating the full window - no double counting,
	//       no leakage at boundaries

	amount := decimal.RequireFromString("299.97")
	coverage := period(date(2024, time.June, 3), date(2024, time.June, 27))
	window := period(date(2024, time.June, 1), date(2024, time.June, 30))

	full := generic.Prorate(amount, coverage, window)

	for mid := window.From; mid.Before(window.To); mid = mid.AddDays(1) {
		left := generic.Prorate(amount, coverage, period(window.From, mid))
		right := generic.Prorate(amount, coverage, period(mid.AddDays(1), window.To))
		sum := left.Add(right)
		if !sum.Equal(full) {
			t.Fatalf("split at %s: %s + %s = %s, expected %s", mid, left, right, sum, full)
		}
	}
}

func TestProrateEntry_KeepsCurrencyTag(t *testing.T) {
	entry := generic.CostEntry{
		PeriodFrom: date(2024, time.June, 1),
		PeriodTo:   date(2024, time.June, 30),
		Amount:     generic.NewMoney(decimal.NewFromInt(300), "EUR"),
	}

	got := generic.ProrateEntry(entry, period(date(2024, time.June, 10), date(2024, time.June, 19)))
	if got.Currency != "EUR" {
		t.Errorf("currency tag lost: %q", got.Currency)
	}
	if !got.Value.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected 100, got %s", got.Value)
	}
}

func TestAccumulator_TotalIndependentOfGroupRounding(t *testing.T) {
	// Three thirds of 100 rounded per group would give 33.33 * 3 = 99.99.
	// The total must be accumulated unrounded and come out as 100.
	third := decimal.NewFromInt(100).Div(decimal.NewFromInt(3))

	acc := generic.NewAccumulator()
	acc.Add(generic.GroupKey{"a"}, third)
	acc.Add(generic.GroupKey{"b"}, third)
	acc.Add(generic.GroupKey{"c"}, third)

	if !acc.Total().Round(2).Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total 100.00, got %s", acc.Total().Round(2))
	}

	roundedSum := decimal.Zero
	for _, g := range acc.Groups() {
		roundedSum = roundedSum.Add(g.Amount.Round(2))
	}
	// 33.33 * 3: the naive sum-of-rounded drifts, the accumulator total doesn't.
	if !roundedSum.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("expected sum of rounded groups 99.99, got %s", roundedSum)
	}
}
