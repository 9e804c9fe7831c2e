// Package degrade makes best-effort fallbacks explicit: an optimization
// that can fail is paired with a simpler path that cannot.
package degrade

import "context"

// Attempt is a best-effort step that may fail.
type Attempt[T any] func(ctx context.Context) (T, error)

// Fallback produces a value unconditionally.
type Fallback[T any] func() T

// Or runs attempt and returns its value. When attempt fails, fallback's
// value is returned together with the attempt's error so the caller can log
// it. The returned value is always usable.
func Or[T any](ctx context.Context, attempt Attempt[T], fallback Fallback[T]) (T, error) {
	if err := ctx.Err(); err != nil {
		return fallback(), err
	}
	v, err := attempt(ctx)
	if err != nil {
		return fallback(), err
	}
	return v, nil
}

// OrZero is Or with the zero value as fallback.
func OrZero[T any](ctx context.Context, attempt Attempt[T]) (T, error) {
	return Or(ctx, attempt, func() T {
		var zero T
		return zero
	})
}
