package generic

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// PRICE SOURCE - External price series collaborator
// =============================================================================

// PriceSource answers "what was the price of this entity on this date".
// Percent-of-price rules cannot be valued without one. Implementations may
// be slow or transiently absent; callers wrap lookups with WithTimeout and
// treat a timeout as ErrPriceSourceUnavailable, never as "no rule".
type PriceSource interface {
	// PriceAt returns the price for the entity effective at the date, or an
	// error wrapping ErrPriceSourceUnavailable when the series has no
	// answer for that entity/date.
	PriceAt(ctx context.Context, key EntityKey, at TimePoint) (Money, error)
}

// PriceSourceFunc adapts a function to the PriceSource interface.
type PriceSourceFunc func(ctx context.Context, key EntityKey, at TimePoint) (Money, error)

func (f PriceSourceFunc) PriceAt(ctx context.Context, key EntityKey, at TimePoint) (Money, error) {
	return f(ctx, key, at)
}

// WithTimeout bounds every lookup against a possibly-slow source. A lookup
// that exceeds the timeout surfaces as ErrPriceSourceUnavailable so that
// coverage and summaries degrade instead of hanging or crashing.
func WithTimeout(src PriceSource, timeout time.Duration) PriceSource {
	return PriceSourceFunc(func(ctx context.Context, key EntityKey, at TimePoint) (Money, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		m, err := src.PriceAt(ctx, key, at)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return Money{}, &PriceLookupError{EntityKey: key, At: at, Cause: err}
			}
			return Money{}, err
		}
		return m, nil
	})
}
