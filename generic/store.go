/*
store.go - Persistence interfaces for rules, tariffs and cost entries

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

UPSERT CONTRACT:
  UpsertRule and UpsertTariff are keyed writes: (entity_key, scope,
  valid_from) for rules, (sku, valid_from) for tariffs. The implementation
  must make each keyed write atomic at the storage layer (one insert-or-
  update operation), which is the only serialization the bulk processor
  relies on. The engine itself holds no locks.

DELETE CONTRACT:
  Deletes by row id return ErrEntryNotFound on a missing id; callers
  translate that to an idempotent 404, not a fatal error.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing/dev

SEE ALSO:
  - bulk.go: Drives UpsertRule row by row
  - resolver.go: Reads timelines via ListRules
*/
package generic

import "context"

// =============================================================================
// RULE STORE - Effective-dated rule rows
// =============================================================================

type RuleStore interface {
	// ListRules returns the timeline for one (entity, scope) pair,
	// ordered by ValidFrom.
	ListRules(ctx context.Context, key EntityKey, scope Scope) ([]RuleEntry, error)

	// SearchRules returns a page of rules matching the search term (empty
	// term matches all), plus the total match count.
	SearchRules(ctx context.Context, search string, limit, offset int) ([]RuleEntry, int, error)

	// GetRule returns a rule by row id, or ErrEntryNotFound.
	GetRule(ctx context.Context, id int64) (*RuleEntry, error)

	// UpsertRule inserts or updates the row keyed by (EntityKey, Scope,
	// ValidFrom) as one atomic storage operation. Returns true when a new
	// row was created, false when an existing one was updated.
	UpsertRule(ctx context.Context, e RuleEntry) (bool, error)

	// UpdateRule replaces a row by id, or ErrEntryNotFound.
	UpdateRule(ctx context.Context, e RuleEntry) error

	// DeleteRule removes a row by id, or ErrEntryNotFound.
	DeleteRule(ctx context.Context, id int64) error
}

// =============================================================================
// TARIFF STORE - Supersede-only tariff points
// =============================================================================

type TariffStore interface {
	// ListTariffPoints returns one SKU's timeline, ordered by ValidFrom.
	ListTariffPoints(ctx context.Context, sku EntityKey) ([]TariffPoint, error)

	// SearchTariffPoints returns a page of points matching the search term,
	// plus the total match count.
	SearchTariffPoints(ctx context.Context, search string, limit, offset int) ([]TariffPoint, int, error)

	// UpsertTariffPoint inserts or updates the row keyed by (SKU, ValidFrom)
	// atomically. Returns true when created.
	UpsertTariffPoint(ctx context.Context, p TariffPoint) (bool, error)

	// DeleteTariffPoint removes a point by id, or ErrEntryNotFound.
	DeleteTariffPoint(ctx context.Context, id int64) error
}

// =============================================================================
// COST STORE - Period-bounded cost entries
// =============================================================================

type CostStore interface {
	// ListCosts returns a page of entries matching the search term, plus
	// the total match count.
	ListCosts(ctx context.Context, search string, limit, offset int) ([]CostEntry, int, error)

	// CostsOverlapping returns every entry whose coverage period overlaps
	// the window. Entries fully outside contribute zero anyway, but are
	// filtered here to keep summaries cheap.
	CostsOverlapping(ctx context.Context, window Period) ([]CostEntry, error)

	// GetCost returns an entry by id, or ErrEntryNotFound.
	GetCost(ctx context.Context, id string) (*CostEntry, error)

	InsertCost(ctx context.Context, e CostEntry) error

	// UpdateCost replaces an entry by id, or ErrEntryNotFound.
	UpdateCost(ctx context.Context, e CostEntry) error

	// DeleteCost removes an entry by id, or ErrEntryNotFound.
	DeleteCost(ctx context.Context, id string) error
}
