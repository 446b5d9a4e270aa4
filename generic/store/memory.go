// Package store provides in-memory implementations of the persistence
// interfaces, used by tests and dev mode.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/tariff-engine/generic"
)

// =============================================================================
// MEMORY STORE - Implements RuleStore, TariffStore and CostStore
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	rules   map[int64]generic.RuleEntry
	tariffs map[int64]generic.TariffPoint
	costs   map[string]generic.CostEntry

	nextRuleID   int64
	nextTariffID int64
}

func NewMemory() *Memory {
	return &Memory{
		rules:   make(map[int64]generic.RuleEntry),
		tariffs: make(map[int64]generic.TariffPoint),
		costs:   make(map[string]generic.CostEntry),
	}
}

// Reset clears all data. Used by the dev scenario loader.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = make(map[int64]generic.RuleEntry)
	m.tariffs = make(map[int64]generic.TariffPoint)
	m.costs = make(map[string]generic.CostEntry)
	return nil
}

// -----------------------------------------------------------------------------
// RuleStore
// -----------------------------------------------------------------------------

func (m *Memory) ListRules(_ context.Context, key generic.EntityKey, scope generic.Scope) ([]generic.RuleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.RuleEntry
	for _, e := range m.rules {
		if e.EntityKey == key && e.Scope == scope {
			out = append(out, e)
		}
	}
	sortRules(out)
	return out, nil
}

func (m *Memory) SearchRules(_ context.Context, search string, limit, offset int) ([]generic.RuleEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []generic.RuleEntry
	for _, e := range m.rules {
		if search == "" || strings.Contains(strings.ToLower(string(e.EntityKey)), strings.ToLower(search)) {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].EntityKey != all[j].EntityKey {
			return all[i].EntityKey < all[j].EntityKey
		}
		return all[i].ValidFrom.Before(all[j].ValidFrom)
	})
	return pageRules(all, limit, offset), len(all), nil
}

func (m *Memory) GetRule(_ context.Context, id int64) (*generic.RuleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.rules[id]
	if !ok {
		return nil, generic.ErrEntryNotFound
	}
	return &e, nil
}

// UpsertRule is atomic per key: the whole lookup-then-write runs under one
// lock, mirroring the single-statement upsert of the sqlite store.
func (m *Memory) UpsertRule(_ context.Context, e generic.RuleEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.rules {
		if existing.EntityKey == e.EntityKey && existing.Scope == e.Scope && existing.ValidFrom.Equal(e.ValidFrom) {
			e.ID = id
			e.CreatedAt = existing.CreatedAt
			m.rules[id] = e
			return false, nil
		}
	}

	m.nextRuleID++
	e.ID = m.nextRuleID
	m.rules[e.ID] = e
	return true, nil
}

func (m *Memory) UpdateRule(_ context.Context, e generic.RuleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[e.ID]; !ok {
		return generic.ErrEntryNotFound
	}
	m.rules[e.ID] = e
	return nil
}

func (m *Memory) DeleteRule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return generic.ErrEntryNotFound
	}
	delete(m.rules, id)
	return nil
}

// -----------------------------------------------------------------------------
// TariffStore
// -----------------------------------------------------------------------------

func (m *Memory) ListTariffPoints(_ context.Context, sku generic.EntityKey) ([]generic.TariffPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.TariffPoint
	for _, p := range m.tariffs {
		if p.SKU == sku {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out, nil
}

func (m *Memory) SearchTariffPoints(_ context.Context, search string, limit, offset int) ([]generic.TariffPoint, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []generic.TariffPoint
	for _, p := range m.tariffs {
		if search == "" || strings.Contains(strings.ToLower(string(p.SKU)), strings.ToLower(search)) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].SKU != all[j].SKU {
			return all[i].SKU < all[j].SKU
		}
		return all[i].ValidFrom.Before(all[j].ValidFrom)
	})
	return pageTariffs(all, limit, offset), len(all), nil
}

func (m *Memory) UpsertTariffPoint(_ context.Context, p generic.TariffPoint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.tariffs {
		if existing.SKU == p.SKU && existing.ValidFrom.Equal(p.ValidFrom) {
			p.ID = id
			p.CreatedAt = existing.CreatedAt
			m.tariffs[id] = p
			return false, nil
		}
	}

	m.nextTariffID++
	p.ID = m.nextTariffID
	m.tariffs[p.ID] = p
	return true, nil
}

func (m *Memory) DeleteTariffPoint(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tariffs[id]; !ok {
		return generic.ErrEntryNotFound
	}
	delete(m.tariffs, id)
	return nil
}

// -----------------------------------------------------------------------------
// CostStore
// -----------------------------------------------------------------------------

func (m *Memory) ListCosts(_ context.Context, search string, limit, offset int) ([]generic.CostEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(search)
	var all []generic.CostEntry
	for _, e := range m.costs {
		if search == "" ||
			strings.Contains(strings.ToLower(e.Category), needle) ||
			strings.Contains(strings.ToLower(e.Subcategory), needle) ||
			strings.Contains(strings.ToLower(e.InternalSKU), needle) ||
			strings.Contains(strings.ToLower(e.MarketplaceCode), needle) {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PeriodFrom.Equal(all[j].PeriodFrom) {
			return all[i].PeriodFrom.Before(all[j].PeriodFrom)
		}
		return all[i].ID < all[j].ID
	})
	return pageCosts(all, limit, offset), len(all), nil
}

func (m *Memory) CostsOverlapping(_ context.Context, window generic.Period) ([]generic.CostEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.CostEntry
	for _, e := range m.costs {
		if _, ok := e.Period().Overlap(window); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetCost(_ context.Context, id string) (*generic.CostEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.costs[id]
	if !ok {
		return nil, generic.ErrEntryNotFound
	}
	return &e, nil
}

func (m *Memory) InsertCost(_ context.Context, e generic.CostEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costs[e.ID] = e
	return nil
}

func (m *Memory) UpdateCost(_ context.Context, e generic.CostEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.costs[e.ID]; !ok {
		return generic.ErrEntryNotFound
	}
	m.costs[e.ID] = e
	return nil
}

func (m *Memory) DeleteCost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.costs[id]; !ok {
		return generic.ErrEntryNotFound
	}
	delete(m.costs, id)
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func sortRules(rules []generic.RuleEntry) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ValidFrom.Before(rules[j].ValidFrom) })
}

func pageRules(all []generic.RuleEntry, limit, offset int) []generic.RuleEntry {
	lo, hi := pageBounds(len(all), limit, offset)
	return all[lo:hi]
}

func pageTariffs(all []generic.TariffPoint, limit, offset int) []generic.TariffPoint {
	lo, hi := pageBounds(len(all), limit, offset)
	return all[lo:hi]
}

func pageCosts(all []generic.CostEntry, limit, offset int) []generic.CostEntry {
	lo, hi := pageBounds(len(all), limit, offset)
	return all[lo:hi]
}

func pageBounds(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
