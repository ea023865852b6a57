package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrBadLimit = errors.New("limiter needs a positive max and window")

func checkLimit(max int, window time.Duration) error {
	if max < 1 || window <= 0 {
		return fmt.Errorf("%w: max %d, window %s", ErrBadLimit, max, window)
	}
	return nil
}

// Decision is the outcome of a limiter check. RetryAfter is set when the
// attempt was denied.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits at most a fixed number of attempts per key in any rolling
// window. Admitted attempts count against the window; denied ones do not.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Window is an in-process sliding log Limiter. It is only correct for a
// single instance; use RedisWindow when handlers are replicated.
type Window struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewWindow(max int, window time.Duration) (*Window, error) {
	if err := checkLimit(max, window); err != nil {
		return nil, err
	}

	w := Window{
		max:    max,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
	return &w, nil
}

func (w *Window) Allow(ctx context.Context, key string) (Decision, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.sweep(now)

	hits := prune(w.hits[key], now.Add(-w.window))
	if len(hits) >= w.max {
		w.hits[key] = hits
		return Decision{RetryAfter: hits[0].Add(w.window).Sub(now)}, nil
	}

	hits = append(hits, now)
	w.hits[key] = hits
	return Decision{Allowed: true, Remaining: w.max - len(hits)}, nil
}

// sweep drops keys with no attempts inside the window, at most once per window.
func (w *Window) sweep(now time.Time) {
	if now.Sub(w.lastSweep) < w.window {
		return
	}
	w.lastSweep = now

	cutoff := now.Add(-w.window)
	for k, hits := range w.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(w.hits, k)
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
