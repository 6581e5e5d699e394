// Package transform turns origin bytes into cached values and persisted blobs, per pipeline.
package transform

import (
	"context"
	"fmt"

	"github.com/Borislavv/go-ash-fetch/model"
)

// Codec is the value-specific half of a pipeline.
type Codec[V any] interface {
	// Transform derives the value for key from origin bytes and the bytes to persist for it.
	Transform(ctx context.Context, key model.Key, raw []byte) (value V, persisted []byte, err error)
	// Decode rebuilds a value from persisted bytes.
	Decode(ctx context.Context, data []byte) (V, error)
	// Cost is the value's weight against the memory limit.
	Cost(value V) int64
}

type result[V any] struct {
	value     V
	persisted []byte
	err       error
}

// detached runs fn on its own goroutine so the caller returns as soon as ctx ends.
// fn keeps running to completion in the background and its result is dropped.
func detached[V any](ctx context.Context, fn func() (V, []byte, error)) (value V, persisted []byte, err error) {
	if err = ctx.Err(); err != nil {
		return value, nil, model.Cancelled(err)
	}

	ch := make(chan result[V], 1)
	go func() {
		var r result[V]
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("%w: panic: %v", model.ErrTransformFailed, p)
			}
			ch <- r
		}()
		r.value, r.persisted, r.err = fn()
	}()

	select {
	case <-ctx.Done():
		return value, nil, model.Cancelled(ctx.Err())
	case r := <-ch:
		return r.value, r.persisted, r.err
	}
}
