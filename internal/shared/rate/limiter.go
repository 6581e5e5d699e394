// Package rate paces origin requests.
package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

// Limiter hands out at most perSec permits per second with a small burst buffer.
type Limiter struct {
	ch    chan struct{}
	l     ratelimit.Limiter
	limit int
}

// NewLimiter starts the permit provider; it stops and closes the permit channel when ctx ends.
func NewLimiter(ctx context.Context, perSec int) *Limiter {
	brst := int(float64(perSec) * 0.1)
	if brst < 1 {
		brst = 1
	}
	lim := &Limiter{
		limit: perSec,
		ch:    make(chan struct{}, brst),
		l:     ratelimit.New(perSec),
	}
	go lim.provider(ctx)
	return lim
}

func (l *Limiter) provider(ctx context.Context) {
	defer close(l.ch)
	for {
		l.l.Take()
		select {
		case <-ctx.Done():
			return
		case l.ch <- struct{}{}:
		}
	}
}

// Wait blocks until a permit is available or ctx ends. A stopped limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		return nil
	}
}

func (l *Limiter) Limit() int { return l.limit }
