/*
bulk.go - Per-row bulk upsert with partial-failure semantics

PURPOSE:
  Validates and persists a batch of rule rows independently. One bad row
  never aborts the batch; the caller always gets a row-indexed accounting
  of what happened. This is explicitly NOT atomic across rows - partial
  success is the designed behavior.

ROW LIFECYCLE:
  parse error (carried in)  -> failed, error recorded, continue
  validation error          -> failed, error recorded, continue
  upsert, key existed       -> updated
  upsert, key was new       -> inserted
  storage failure           -> fatal, propagates; infrastructure errors are
                               not per-row outcomes

INVARIANT:
  inserted + updated + failed == len(rows), always.

SEE ALSO:
  - store.go: The keyed, storage-atomic UpsertRule contract
*/
package generic

import (
	"context"
	"fmt"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// RowError identifies one failed row of a batch.
type RowError struct {
	RowIndex  int
	EntityKey EntityKey
	Message   string
}

// BulkUpsertResult is the transient response of a bulk apply, never persisted.
type BulkUpsertResult struct {
	Inserted int
	Updated  int
	Failed   int
	Errors   []RowError
}

// Outcome distinguishes fully succeeded, partially succeeded and fully
// failed batches for the caller.
func (r BulkUpsertResult) Outcome() string {
	switch {
	case r.Failed == 0:
		return "succeeded"
	case r.Inserted+r.Updated == 0:
		return "failed"
	default:
		return "partial"
	}
}

// =============================================================================
// BULK UPSERT PROCESSOR
// =============================================================================

// BulkRow is one candidate row. ParseErr carries an upstream wire-format
// failure so it still gets reported at its row index.
type BulkRow struct {
	Entry    RuleEntry
	ParseErr error
}

// RuleUpserter is the single store capability the processor needs.
// RuleStore satisfies it.
type RuleUpserter interface {
	UpsertRule(ctx context.Context, e RuleEntry) (bool, error)
}

// RuleValidator checks one row before it is written. Domain packages supply
// the per-mode required-field rules.
type RuleValidator func(e RuleEntry) error

// BulkUpsertProcessor applies batches row by row.
type BulkUpsertProcessor struct {
	Store    RuleUpserter
	Validate RuleValidator
}

// Apply validates and upserts each row independently. The returned error is
// non-nil only for infrastructure failures; validation failures are part of
// the result.
func (p *BulkUpsertProcessor) Apply(ctx context.Context, rows []BulkRow) (BulkUpsertResult, error) {
	var result BulkUpsertResult

	for i, row := range rows {
		if row.ParseErr != nil {
			result.fail(i, row.Entry.EntityKey, row.ParseErr)
			continue
		}
		if p.Validate != nil {
			if err := p.Validate(row.Entry); err != nil {
				result.fail(i, row.Entry.EntityKey, err)
				continue
			}
		}

		created, err := p.Store.UpsertRule(ctx, row.Entry)
		if err != nil {
			return result, fmt.Errorf("row %d: upsert %s: %w", i, row.Entry.EntityKey, err)
		}
		if created {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

func (r *BulkUpsertResult) fail(index int, key EntityKey, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{
		RowIndex:  index,
		EntityKey: key,
		Message:   err.Error(),
	})
}
