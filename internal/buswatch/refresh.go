package buswatch

import (
	"context"
	"sync"
	"time"
)

// Refresher drives the fixed-interval refresh loop. It exposes a cooperative
// timer instead of a blocking sleep so callers can redraw a countdown and
// honor manual triggers while a cycle is pending.
type Refresher struct {
	interval time.Duration
	manual   chan struct{}

	mu     sync.Mutex
	nextAt time.Time
}

func NewRefresher(interval time.Duration) *Refresher {
	return &Refresher{
		interval: interval,
		manual:   make(chan struct{}, 1),
	}
}

// TriggerNow requests an immediate refresh. Requests arriving while one is
// already queued coalesce.
func (r *Refresher) TriggerNow() {
	select {
	case r.manual <- struct{}{}:
	default:
	}
}

// Remaining reports the time left until the next scheduled refresh.
func (r *Refresher) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := time.Until(r.nextAt)
	if d < 0 {
		return 0
	}
	return d
}

// Run invokes fn once immediately, then on every interval tick or manual
// trigger, until ctx is canceled. Each invocation owns its working data
// exclusively; nothing is shared across cycles.
func (r *Refresher) Run(ctx context.Context, fn func(ctx context.Context)) {
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-r.manual:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
		fn(ctx)
		r.mu.Lock()
		r.nextAt = time.Now().Add(r.interval)
		r.mu.Unlock()
		t.Reset(r.interval)
	}
}
