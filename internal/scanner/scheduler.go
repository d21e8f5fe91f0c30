package scanner

import (
	"context"
	"time"
)

// DefaultTickInterval approximates one display frame. A scan over a
// link-heavy page spreads across ticks instead of monopolizing the
// document lock.
const DefaultTickInterval = 16 * time.Millisecond

// Scheduler provides the cooperative yield point between scan chunks.
// Wait blocks until the next tick or until the context is cancelled.
type Scheduler interface {
	Wait(ctx context.Context) error
}

// TickScheduler yields on a fixed wall-clock interval. This is the
// batch-job equivalent of deferring to the next paint: bounded work per
// tick, with the gap between ticks left free for other consumers of the
// document.
type TickScheduler struct {
	interval time.Duration
}

// NewTickScheduler creates a scheduler with the given tick interval.
// Non-positive intervals fall back to DefaultTickInterval.
func NewTickScheduler(interval time.Duration) *TickScheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &TickScheduler{interval: interval}
}

// Wait blocks until the next tick.
func (s *TickScheduler) Wait(ctx context.Context) error {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ImmediateScheduler never blocks. Used in tests and anywhere chunk
// pacing is not wanted.
type ImmediateScheduler struct{}

// Wait returns immediately unless the context is already cancelled.
func (ImmediateScheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
