/*
errors.go - Centralized error types for the resolution engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Resolution outcomes - "no rule" is a valid outcome callers handle
     explicitly, not an exceptional condition
  2. Validation errors - bad input shape or range, reported per-row in bulk
  3. Collaborator errors - a price source that cannot answer

USAGE:
  Domain packages test with errors.Is:

    if errors.Is(err, generic.ErrNoRuleFound) {
        // fall back to zero-cost or surface a coverage gap
    }

SEE ALSO:
  - resolver.go: Produces ErrNoRuleFound
  - pricesource.go: Produces ErrPriceSourceUnavailable
  - bulk.go: Collects ValidationError per row
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoRuleFound is returned when resolution produced no applicable
	// entry. This is a valid outcome, not a failure; callers decide whether
	// it means zero-cost or a coverage gap.
	ErrNoRuleFound = errors.New("no applicable rule found")

	// ErrPriceSourceUnavailable is returned when percent-of-price resolution
	// could not obtain a price. Distinct from ErrNoRuleFound: the rule
	// exists but cannot be valued.
	ErrPriceSourceUnavailable = errors.New("price source unavailable")

	// ErrEntryNotFound is returned when a referenced row id doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a bad input field. In bulk operations one
// ValidationError is collected per failing row; the batch continues.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PriceLookupError wraps ErrPriceSourceUnavailable with the lookup that failed.
type PriceLookupError struct {
	SourceCode string
	EntityKey  EntityKey
	At         TimePoint
	Cause      error
}

func (e *PriceLookupError) Error() string {
	return fmt.Sprintf("price source %q has no price for %s at %s", e.SourceCode, e.EntityKey, e.At)
}

func (e *PriceLookupError) Unwrap() error {
	return ErrPriceSourceUnavailable
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid client input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound)
}

// IsDegraded returns true for per-entity outcomes that fold into coverage
// or summary output as "missing" instead of aborting the computation.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrNoRuleFound) || errors.Is(err, ErrPriceSourceUnavailable)
}
