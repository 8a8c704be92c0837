package util

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces out calls to a third-party endpoint with a fixed delay. The
// first Wait returns immediately; every later Wait sleeps for the interval.
type Pacer struct {
	interval time.Duration
	mu       sync.Mutex
	started  bool
}

// NewPacer creates a Pacer with the given inter-call delay.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the next call may be issued or ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if first || p.interval <= 0 {
		return ctx.Err()
	}
	return Sleep(ctx, p.interval)
}

// Sleep waits for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
