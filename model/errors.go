package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any tier is touched when the source reference is absent or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransport means the origin fetch failed.
	ErrTransport = errors.New("transport error")
	// ErrDecode means bytes could not be interpreted as the value type.
	ErrDecode = errors.New("decode failed")
	// ErrTransformFailed means resampling or re-encoding failed.
	ErrTransformFailed = errors.New("transform failed")
	// ErrCancelled is returned to every observer of a cancelled fetch.
	ErrCancelled = errors.New("cancelled")
)

// Cancelled wraps cause as ErrCancelled; the result also matches context.Canceled.
func Cancelled(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	if errors.Is(cause, ErrCancelled) {
		return cause
	}
	if !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", ErrCancelled, context.Canceled, cause)
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// IsCancellation reports whether err was caused by cancellation rather than a genuine failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
