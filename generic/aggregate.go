/*
aggregate.go - Group-by accumulation of prorated contributions

PURPOSE:
  Sums prorated amounts into groups chosen by the caller (category,
  marketplace, product...) while independently accumulating the grand
  total from unrounded values. Summing rounded group amounts would drift
  by cents; the total here never does.

USAGE:
  acc := generic.NewAccumulator()
  for _, e := range entries {
      share := generic.ProrateEntry(e, window)
      acc.Add(generic.GroupKey{e.Category, e.Subcategory}, share.Value)
  }
  total := acc.Total()        // unrounded
  for _, g := range acc.Groups() { ... g.Amount.Round(2) ... }

SEE ALSO:
  - proration.go: Produces the contributions
  - coverage.go: The companion read-model over rule presence
*/
package generic

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// GroupKey identifies one breakdown row. Parts are dimension values in the
// order the caller groups by; empty parts are legal (the unattributed
// "general" bucket uses them).
type GroupKey []string

func (k GroupKey) ID() string { return strings.Join(k, "\x1f") }

// Group is one accumulated breakdown row.
type Group struct {
	Key    GroupKey
	Amount decimal.Decimal // unrounded; round once at the boundary
	Count  int             // contributions summed into this group
}

// Accumulator sums contributions per group and in total.
// Not safe for concurrent use; callers merge per-worker accumulators instead.
type Accumulator struct {
	groups map[string]*Group
	order  []string
	total  decimal.Decimal
}

func NewAccumulator() *Accumulator {
	return &Accumulator{groups: make(map[string]*Group)}
}

// Add folds one contribution into its group and into the total.
func (a *Accumulator) Add(key GroupKey, amount decimal.Decimal) {
	id := key.ID()
	g, ok := a.groups[id]
	if !ok {
		g = &Group{Key: key, Amount: decimal.Zero}
		a.groups[id] = g
		a.order = append(a.order, id)
	}
	g.Amount = g.Amount.Add(amount)
	g.Count++
	a.total = a.total.Add(amount)
}

// Merge folds another accumulator in. Used to combine per-worker results;
// summation is order-independent.
func (a *Accumulator) Merge(other *Accumulator) {
	for _, id := range other.order {
		g := other.groups[id]
		dst, ok := a.groups[id]
		if !ok {
			dst = &Group{Key: g.Key, Amount: decimal.Zero}
			a.groups[id] = dst
			a.order = append(a.order, id)
		}
		dst.Amount = dst.Amount.Add(g.Amount)
		dst.Count += g.Count
	}
	a.total = a.total.Add(other.total)
}

// Total is the grand total accumulated from unrounded contributions,
// independent of any per-group rounding.
func (a *Accumulator) Total() decimal.Decimal { return a.total }

// Groups returns breakdown rows sorted by key for stable output.
func (a *Accumulator) Groups() []Group {
	out := make([]Group, 0, len(a.groups))
	for _, id := range a.order {
		out = append(out, *a.groups[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID() < out[j].Key.ID() })
	return out
}
