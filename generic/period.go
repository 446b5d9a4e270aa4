package generic

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive date range [From, To].
// Both rule validity windows and cost coverage periods are Periods, and every
// query window handed to proration or aggregation is one as well.
type Period struct {
	From TimePoint
	To   TimePoint
}

// NewPeriod builds a period, rejecting To before From.
func NewPeriod(from, to TimePoint) (Period, error) {
	if to.Before(from) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{From: from, To: to}, nil
}

// Contains returns true if the date is within [From, To].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.From) && t.BeforeOrEqual(p.To)
}

// Days returns the inclusive day count. A single-day period has 1 day.
func (p Period) Days() int {
	return DaysBetween(p.From, p.To) + 1
}

// Overlap returns the intersection with another period, and whether the two
// periods overlap at all.
func (p Period) Overlap(o Period) (Period, bool) {
	from := Later(p.From, o.From)
	to := Earlier(p.To, o.To)
	if to.Before(from) {
		return Period{}, false
	}
	return Period{From: from, To: to}, true
}

func (p Period) String() string {
	return "[" + p.From.String() + ", " + p.To.String() + "]"
}
