/*
service.go - COGS rule operations

PURPOSE:
  The application-facing surface for COGS rules: per-SKU cost resolution,
  catalog coverage, the missing-SKU list driving the "fill the gaps"
  workflow, bulk upsert and single-row CRUD.

COVERAGE CACHE:
  Coverage walks the whole catalog and, for percent-of-price rules, hits
  the price source per SKU. Responses are cached per as-of date; `force`
  bypasses the cache and any write invalidates it.

SEE ALSO:
  - types.go: Mode variants and validation
  - generic/coverage.go: The fan-out underneath Coverage
*/
package cogs

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/tariff-engine/catalog"
	"github.com/warp/tariff-engine/generic"
)

const coverageCacheTTL = 5 * time.Minute

// Service wires the resolver, price sources and catalog together.
type Service struct {
	Rules   generic.RuleStore
	Prices  PriceLookup
	Catalog catalog.Catalog
	Logger  *zap.Logger

	resolverOnce sync.Once
	resolver     *generic.ScopeResolver

	cacheMu sync.Mutex
	cache   map[string]cachedCoverage
}

type cachedCoverage struct {
	report     CoverageReport
	computedAt time.Time
}

func NewService(rules generic.RuleStore, prices PriceLookup, cat catalog.Catalog, logger *zap.Logger) *Service {
	return &Service{
		Rules:   rules,
		Prices:  prices,
		Catalog: cat,
		Logger:  logger,
		cache:   make(map[string]cachedCoverage),
	}
}

func (s *Service) scopeResolver() *generic.ScopeResolver {
	s.resolverOnce.Do(func() {
		s.resolver = &generic.ScopeResolver{Rules: s.Rules, Logger: s.Logger}
	})
	return s.resolver
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveCost values one SKU at one date. Returns ErrNoRuleFound when no
// rule applies, or an error wrapping ErrPriceSourceUnavailable when a
// percent rule cannot be priced.
func (s *Service) ResolveCost(ctx context.Context, sku generic.EntityKey, asOf generic.TimePoint) (ResolvedCost, error) {
	rule, err := s.scopeResolver().Resolve(ctx, sku, asOf)
	if err != nil {
		return ResolvedCost{}, err
	}

	value, err := ValueOf(*rule)
	if err != nil {
		return ResolvedCost{}, err
	}

	cost := ResolvedCost{Rule: *rule, FromDefault: rule.Scope == generic.ScopeAll}
	switch v := value.(type) {
	case FixedValue:
		cost.Amount = v.Amount
	case PercentOfPriceValue:
		price, err := s.Prices.PriceAt(ctx, v.PriceSourceCode, sku, asOf)
		if err != nil {
			return ResolvedCost{}, err
		}
		cost.Amount = price.Mul(v.Percent.Div(decimal.NewFromInt(100)))
	}
	return cost, nil
}

// Resolve satisfies generic.EntityResolver for coverage: an entity only
// counts as covered when its rule can actually be valued, so a percent
// rule with no price degrades into "missing".
func (s *Service) Resolve(ctx context.Context, key generic.EntityKey, asOf generic.TimePoint) (*generic.RuleEntry, error) {
	cost, err := s.ResolveCost(ctx, key, asOf)
	if err != nil {
		return nil, err
	}
	return &cost.Rule, nil
}

// =============================================================================
// COVERAGE
// =============================================================================

// Coverage reports how much of the SKU catalog resolves to a usable rule
// as of the date. force bypasses the per-date cache.
func (s *Service) Coverage(ctx context.Context, asOf generic.TimePoint, force bool) (CoverageReport, error) {
	key := asOf.String()
	if !force {
		s.cacheMu.Lock()
		cached, ok := s.cache[key]
		s.cacheMu.Unlock()
		if ok && time.Since(cached.computedAt) < coverageCacheTTL {
			return cached.report, nil
		}
	}

	skus, err := s.Catalog.SKUs(ctx)
	if err != nil {
		return CoverageReport{}, err
	}

	calc := &generic.CoverageCalculator{Resolver: s}
	snap, err := calc.Coverage(ctx, catalog.Keys(skus), asOf)
	if err != nil {
		return CoverageReport{}, err
	}

	report := CoverageReport{
		InternalDataAvailable: len(skus) > 0,
		InternalSKUsTotal:     snap.Total,
		CoveredTotal:          snap.Covered,
		MissingTotal:          snap.Missing,
		CoveragePct:           snap.CoveragePct,
	}

	s.cacheMu.Lock()
	s.cache[key] = cachedCoverage{report: report, computedAt: time.Now()}
	s.cacheMu.Unlock()

	return report, nil
}

// MissingSKUs returns up to limit catalog SKUs without a usable rule, in
// catalog order. Drives the bulk "fill the gaps" pre-seeding.
func (s *Service) MissingSKUs(ctx context.Context, asOf generic.TimePoint, limit int) ([]generic.EntityKey, error) {
	skus, err := s.Catalog.SKUs(ctx)
	if err != nil {
		return nil, err
	}

	calc := &generic.CoverageCalculator{Resolver: s}
	return calc.MissingKeys(ctx, catalog.Keys(skus), asOf, limit)
}

func (s *Service) invalidateCoverage() {
	s.cacheMu.Lock()
	s.cache = make(map[string]cachedCoverage)
	s.cacheMu.Unlock()
}

// =============================================================================
// WRITES
// =============================================================================

// BulkUpsert applies a batch with per-row isolation (see generic/bulk.go).
func (s *Service) BulkUpsert(ctx context.Context, rows []generic.BulkRow) (generic.BulkUpsertResult, error) {
	proc := &generic.BulkUpsertProcessor{Store: s.Rules, Validate: ValidateEntry}
	result, err := proc.Apply(ctx, rows)
	if err != nil {
		return result, err
	}
	s.invalidateCoverage()

	if s.Logger != nil && result.Failed > 0 {
		s.Logger.Info("bulk upsert finished with failed rows",
			zap.Int("inserted", result.Inserted),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// Upsert validates and writes one rule keyed by (entity_key, scope, valid_from).
func (s *Service) Upsert(ctx context.Context, e generic.RuleEntry) (generic.RuleEntry, bool, error) {
	if err := ValidateEntry(e); err != nil {
		return generic.RuleEntry{}, false, err
	}
	created, err := s.Rules.UpsertRule(ctx, e)
	if err != nil {
		return generic.RuleEntry{}, false, err
	}
	s.invalidateCoverage()

	// Re-read so the caller sees the assigned row id.
	timeline, err := s.Rules.ListRules(ctx, e.EntityKey, e.Scope)
	if err != nil {
		return generic.RuleEntry{}, created, err
	}
	for _, stored := range timeline {
		if stored.ValidFrom.Equal(e.ValidFrom) {
			return stored, created, nil
		}
	}
	return e, created, nil
}

// Update replaces a rule by row id.
func (s *Service) Update(ctx context.Context, e generic.RuleEntry) error {
	if err := ValidateEntry(e); err != nil {
		return err
	}
	if err := s.Rules.UpdateRule(ctx, e); err != nil {
		return err
	}
	s.invalidateCoverage()
	return nil
}

// Delete removes a rule by row id. ErrEntryNotFound maps to an idempotent
// 404 at the API boundary.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.Rules.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.invalidateCoverage()
	return nil
}

// List returns a page of rules plus the total match count.
func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]generic.RuleEntry, int, error) {
	return s.Rules.SearchRules(ctx, search, limit, offset)
}
