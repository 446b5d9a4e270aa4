/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements RuleStore, TariffStore and CostStore using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  cogs_rules:         Effective-dated rule rows, unique per
                      (entity_key, scope, valid_from)
  packaging_tariffs:  Supersede-only tariff points, unique per (sku, valid_from)
  cost_entries:       Period-bounded additional costs

UPSERT ATOMICITY:
  UpsertRule and UpsertTariffPoint are single INSERT ... ON CONFLICT DO
  UPDATE statements, so each keyed write is atomic at the storage layer.
  That is the only serialization the bulk processor relies on; there is
  no engine-level locking.

DECIMALS AND DATES:
  Monetary values are stored as their decimal string form, dates as
  YYYY-MM-DD text. Nothing monetary ever passes through a float column.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and there is a single writer at a time.

USAGE:
  store, err := sqlite.New("./data/tariff.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/tariff-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset clears all tables. Used by the dev scenario loader; never exposed
// outside development wiring.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"cogs_rules", "packaging_tariffs", "cost_entries"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cogs_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_key TEXT NOT NULL,
		scope TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT,
		mode TEXT NOT NULL,
		value TEXT NOT NULL,
		currency TEXT,
		price_source_code TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(entity_key, scope, valid_from)
	);
	CREATE INDEX IF NOT EXISTS idx_cogs_rules_timeline
		ON cogs_rules(entity_key, scope, valid_from);

	CREATE TABLE IF NOT EXISTS packaging_tariffs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		cost_per_unit TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(sku, valid_from)
	);
	CREATE INDEX IF NOT EXISTS idx_packaging_tariffs_sku
		ON packaging_tariffs(sku, valid_from);

	CREATE TABLE IF NOT EXISTS cost_entries (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		marketplace_code TEXT,
		internal_sku TEXT,
		nm_id TEXT,
		period_from TEXT NOT NULL,
		period_to TEXT NOT NULL,
		date_incurred TEXT,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cost_entries_period
		ON cost_entries(period_from, period_to);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE STORE
// =============================================================================

const ruleColumns = "id, entity_key, scope, valid_from, valid_to, mode, value, currency, price_source_code, created_at"

func (s *Store) ListRules(ctx context.Context, key generic.EntityKey, scope generic.Scope) ([]generic.RuleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM cogs_rules WHERE entity_key = ? AND scope = ? ORDER BY valid_from",
		string(key), string(scope))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *Store) SearchRules(ctx context.Context, search string, limit, offset int) ([]generic.RuleEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	pattern := "%" + search + "%"
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cogs_rules WHERE entity_key LIKE ?", pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM cogs_rules WHERE entity_key LIKE ? ORDER BY entity_key, valid_from LIMIT ? OFFSET ?",
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanRules(rows)
	return entries, total, err
}

func (s *Store) GetRule(ctx context.Context, id int64) (*generic.RuleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM cogs_rules WHERE id = ?", id)
	e, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, generic.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) UpsertRule(ctx context.Context, e generic.RuleEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM cogs_rules WHERE entity_key = ? AND scope = ? AND valid_from = ?",
		string(e.EntityKey), string(e.Scope), e.ValidFrom.String()).Scan(&existing)
	created := err == sql.ErrNoRows
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	// One statement per keyed write: atomic at the storage layer.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cogs_rules (entity_key, scope, valid_from, valid_to, mode, value, currency, price_source_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_key, scope, valid_from) DO UPDATE SET
			valid_to = excluded.valid_to,
			mode = excluded.mode,
			value = excluded.value,
			currency = excluded.currency,
			price_source_code = excluded.price_source_code`,
		string(e.EntityKey), string(e.Scope), e.ValidFrom.String(), nullableDate(e.ValidTo),
		string(e.Mode), e.Value.String(), e.Currency, e.PriceSourceCode,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *Store) UpdateRule(ctx context.Context, e generic.RuleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cogs_rules SET entity_key = ?, scope = ?, valid_from = ?, valid_to = ?, mode = ?, value = ?, currency = ?, price_source_code = ?
		WHERE id = ?`,
		string(e.EntityKey), string(e.Scope), e.ValidFrom.String(), nullableDate(e.ValidTo),
		string(e.Mode), e.Value.String(), e.Currency, e.PriceSourceCode, e.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM cogs_rules WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// =============================================================================
// TARIFF STORE
// =============================================================================

const tariffColumns = "id, sku, valid_from, cost_per_unit, currency, created_at"

func (s *Store) ListTariffPoints(ctx context.Context, sku generic.EntityKey) ([]generic.TariffPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+tariffColumns+" FROM packaging_tariffs WHERE sku = ? ORDER BY valid_from", string(sku))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTariffs(rows)
}

func (s *Store) SearchTariffPoints(ctx context.Context, search string, limit, offset int) ([]generic.TariffPoint, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	pattern := "%" + search + "%"
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM packaging_tariffs WHERE sku LIKE ?", pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+tariffColumns+" FROM packaging_tariffs WHERE sku LIKE ? ORDER BY sku, valid_from LIMIT ? OFFSET ?",
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	points, err := scanTariffs(rows)
	return points, total, err
}

func (s *Store) UpsertTariffPoint(ctx context.Context, p generic.TariffPoint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM packaging_tariffs WHERE sku = ? AND valid_from = ?",
		string(p.SKU), p.ValidFrom.String()).Scan(&existing)
	created := err == sql.ErrNoRows
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO packaging_tariffs (sku, valid_from, cost_per_unit, currency, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sku, valid_from) DO UPDATE SET
			cost_per_unit = excluded.cost_per_unit,
			currency = excluded.currency`,
		string(p.SKU), p.ValidFrom.String(), p.CostPerUnit.String(), p.Currency,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *Store) DeleteTariffPoint(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM packaging_tariffs WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// =============================================================================
// COST STORE
// =============================================================================

const costColumns = "id, scope, marketplace_code, internal_sku, nm_id, period_from, period_to, date_incurred, amount, currency, category, subcategory, created_at"

func (s *Store) ListCosts(ctx context.Context, search string, limit, offset int) ([]generic.CostEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern := "%" + search + "%"
	where := "WHERE category LIKE ? OR subcategory LIKE ? OR internal_sku LIKE ? OR marketplace_code LIKE ?"

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cost_entries "+where,
		pattern, pattern, pattern, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+costColumns+" FROM cost_entries "+where+" ORDER BY period_from, id LIMIT ? OFFSET ?",
		pattern, pattern, pattern, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanCosts(rows)
	return entries, total, err
}

func (s *Store) CostsOverlapping(ctx context.Context, window generic.Period) ([]generic.CostEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Inclusive overlap on YYYY-MM-DD text compares correctly.
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+costColumns+" FROM cost_entries WHERE period_from <= ? AND period_to >= ? ORDER BY id",
		window.To.String(), window.From.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCosts(rows)
}

func (s *Store) GetCost(ctx context.Context, id string) (*generic.CostEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+costColumns+" FROM cost_entries WHERE id = ?", id)
	e, err := scanCost(row)
	if err == sql.ErrNoRows {
		return nil, generic.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) InsertCost(ctx context.Context, e generic.CostEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_entries (id, scope, marketplace_code, internal_sku, nm_id, period_from, period_to, date_incurred, amount, currency, category, subcategory, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Scope), e.MarketplaceCode, e.InternalSKU, e.NmID,
		e.PeriodFrom.String(), e.PeriodTo.String(), nullableDate(e.DateIncurred),
		e.Amount.Value.String(), e.Amount.Currency, e.Category, e.Subcategory,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) UpdateCost(ctx context.Context, e generic.CostEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cost_entries SET scope = ?, marketplace_code = ?, internal_sku = ?, nm_id = ?, period_from = ?, period_to = ?, date_incurred = ?, amount = ?, currency = ?, category = ?, subcategory = ?
		WHERE id = ?`,
		string(e.Scope), e.MarketplaceCode, e.InternalSKU, e.NmID,
		e.PeriodFrom.String(), e.PeriodTo.String(), nullableDate(e.DateIncurred),
		e.Amount.Value.String(), e.Amount.Currency, e.Category, e.Subcategory, e.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteCost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM cost_entries WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type scannable interface {
	Scan(dest ...any) error
}

func scanRule(row scannable) (generic.RuleEntry, error) {
	var e generic.RuleEntry
	var validFrom, value, createdAt string
	var validTo, currency, priceSource sql.NullString

	if err := row.Scan(&e.ID, &e.EntityKey, &e.Scope, &validFrom, &validTo, &e.Mode, &value, &currency, &priceSource, &createdAt); err != nil {
		return e, err
	}

	var err error
	if e.ValidFrom, err = generic.ParseDate(validFrom); err != nil {
		return e, err
	}
	if validTo.Valid && validTo.String != "" {
		to, err := generic.ParseDate(validTo.String)
		if err != nil {
			return e, err
		}
		e.ValidTo = &to
	}
	if e.Value, err = decimal.NewFromString(value); err != nil {
		return e, err
	}
	e.Currency = currency.String
	e.PriceSourceCode = priceSource.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

func scanRules(rows *sql.Rows) ([]generic.RuleEntry, error) {
	var out []generic.RuleEntry
	for rows.Next() {
		e, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanTariff(row scannable) (generic.TariffPoint, error) {
	var p generic.TariffPoint
	var validFrom, cost, createdAt string

	if err := row.Scan(&p.ID, &p.SKU, &validFrom, &cost, &p.Currency, &createdAt); err != nil {
		return p, err
	}

	var err error
	if p.ValidFrom, err = generic.ParseDate(validFrom); err != nil {
		return p, err
	}
	if p.CostPerUnit, err = decimal.NewFromString(cost); err != nil {
		return p, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

func scanTariffs(rows *sql.Rows) ([]generic.TariffPoint, error) {
	var out []generic.TariffPoint
	for rows.Next() {
		p, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanCost(row scannable) (generic.CostEntry, error) {
	var e generic.CostEntry
	var periodFrom, periodTo, amount, currency, createdAt string
	var incurred, marketplace, sku, nmID, subcategory sql.NullString

	if err := row.Scan(&e.ID, &e.Scope, &marketplace, &sku, &nmID, &periodFrom, &periodTo, &incurred, &amount, &currency, &e.Category, &subcategory, &createdAt); err != nil {
		return e, err
	}

	var err error
	if e.PeriodFrom, err = generic.ParseDate(periodFrom); err != nil {
		return e, err
	}
	if e.PeriodTo, err = generic.ParseDate(periodTo); err != nil {
		return e, err
	}
	if incurred.Valid && incurred.String != "" {
		at, err := generic.ParseDate(incurred.String)
		if err != nil {
			return e, err
		}
		e.DateIncurred = &at
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return e, err
	}
	e.Amount = generic.NewMoney(value, currency)
	e.MarketplaceCode = marketplace.String
	e.InternalSKU = sku.String
	e.NmID = nmID.String
	e.Subcategory = subcategory.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

func scanCosts(rows *sql.Rows) ([]generic.CostEntry, error) {
	var out []generic.CostEntry
	for rows.Next() {
		e, err := scanCost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableDate(tp *generic.TimePoint) any {
	if tp == nil {
		return nil
	}
	return tp.String()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrEntryNotFound
	}
	return nil
}
