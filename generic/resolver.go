/*
resolver.go - As-of-date resolution over effective-dated timelines

PURPOSE:
  Selects the single rule version valid on a given calendar date from a
  timeline of effective-dated versions, and layers the SKU-before-default
  scope precedence on top.

RESOLUTION ALGORITHM:
  1. Filter the timeline to entries whose [valid_from, valid_to] window
     contains the as-of date (open-ended windows match any later date)
  2. One match: return it (the normal, non-overlapping case)
  3. Several matches: overlapping input. Pick the latest valid_from, ties
     broken by highest row id (most recently created wins), and flag the
     resolution as ambiguous so callers can log a data-quality warning
  4. No match: ErrNoRuleFound

SCOPE PRECEDENCE:
  A SKU-specific rule always wins over the "all SKUs" default at the same
  as-of date, regardless of which has the later valid_from. This is a hard
  invariant: the default must never shadow a specific rule.

SEE ALSO:
  - types.go: RuleEntry, TariffPoint
  - store.go: RuleStore consumed by ScopeResolver
*/
package generic

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// VALUE RESOLVER - Single-timeline resolution
// =============================================================================

// Resolution is the outcome of resolving one timeline at one date.
type Resolution struct {
	Entry *RuleEntry

	// Ambiguous is set when more than one entry matched the as-of date and
	// the tie-break was applied. Should not normally happen; surfaced as a
	// data-quality signal.
	Ambiguous  bool
	Candidates int
}

// ResolveTimeline picks the applicable entry from one entity's timeline.
// Pure function over the input snapshot.
func ResolveTimeline(entries []RuleEntry, asOf TimePoint) Resolution {
	var matches []RuleEntry
	for _, e := range entries {
		if e.ActiveAt(asOf) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return Resolution{}
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].ValidFrom.Equal(matches[j].ValidFrom) {
			return matches[i].ValidFrom.After(matches[j].ValidFrom)
		}
		return matches[i].ID > matches[j].ID
	})

	winner := matches[0]
	return Resolution{
		Entry:      &winner,
		Ambiguous:  len(matches) > 1,
		Candidates: len(matches),
	}
}

// =============================================================================
// SCOPE RESOLVER - SKU-specific before default
// =============================================================================

// ScopeResolver resolves an entity against up to two timelines: the
// SKU-specific one and the ScopeAll default.
type ScopeResolver struct {
	Rules  RuleStore
	Logger *zap.Logger
}

// Resolve returns the applicable rule for the entity at the as-of date, or
// ErrNoRuleFound. The SKU-specific timeline is consulted first; the default
// timeline only when the specific one has no match.
func (r *ScopeResolver) Resolve(ctx context.Context, key EntityKey, asOf TimePoint) (*RuleEntry, error) {
	specific, err := r.Rules.ListRules(ctx, key, ScopeSKU)
	if err != nil {
		return nil, err
	}
	if res := ResolveTimeline(specific, asOf); res.Entry != nil {
		r.warnAmbiguous(res, key, asOf)
		return res.Entry, nil
	}

	defaults, err := r.Rules.ListRules(ctx, EntityKeyAll, ScopeAll)
	if err != nil {
		return nil, err
	}
	if res := ResolveTimeline(defaults, asOf); res.Entry != nil {
		r.warnAmbiguous(res, EntityKeyAll, asOf)
		return res.Entry, nil
	}

	return nil, ErrNoRuleFound
}

func (r *ScopeResolver) warnAmbiguous(res Resolution, key EntityKey, asOf TimePoint) {
	if !res.Ambiguous || r.Logger == nil {
		return
	}
	r.Logger.Warn("overlapping rule intervals, tie-break applied",
		zap.String("entity_key", string(key)),
		zap.String("as_of", asOf.String()),
		zap.Int("candidates", res.Candidates),
		zap.Int64("winner_id", res.Entry.ID),
	)
}

// =============================================================================
// TARIFF RESOLVER - Supersede-only timelines
// =============================================================================

// ResolveTariffPoint returns the point with the largest valid_from on or
// before the as-of date. ok is false when the date precedes the first point
// (or the timeline is empty); the effective cost is then zero, by policy.
func ResolveTariffPoint(points []TariffPoint, asOf TimePoint) (TariffPoint, bool) {
	var best TariffPoint
	found := false
	for _, p := range points {
		if p.ValidFrom.After(asOf) {
			continue
		}
		if !found || p.ValidFrom.After(best.ValidFrom) || (p.ValidFrom.Equal(best.ValidFrom) && p.ID > best.ID) {
			best = p
			found = true
		}
	}
	return best, found
}

// TariffCostAt is the zero-before-first policy in one call: the unit cost
// at a date, never an error.
func TariffCostAt(points []TariffPoint, asOf TimePoint) decimal.Decimal {
	if p, ok := ResolveTariffPoint(points, asOf); ok {
		return p.CostPerUnit
	}
	return decimal.Zero
}
