package scheduler

import (
	"context"
	"sync"
	"time"

	"NewsWeaver/internal/ports"
)

// CycleTicker drives discrete processing cycles at a fixed interval.
// The first cycle fires immediately on Start.
type CycleTicker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

var _ ports.Scheduler = (*CycleTicker)(nil)

// NewCycleTicker builds a ticker with the configured cycle interval.
func NewCycleTicker(interval time.Duration) *CycleTicker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CycleTicker{interval: interval}
}

// Start begins ticking cycles until the context ends or Stop is called.
func (c *CycleTicker) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine. Safe to call concurrently with a
// running Start.
func (c *CycleTicker) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}
