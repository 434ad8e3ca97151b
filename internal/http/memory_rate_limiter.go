package httpx

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// windowCounter keeps budgets in process memory. Windows that have ended are
// dropped by a background sweep.
type windowCounter struct {
	now    func() time.Time
	cancel context.CancelFunc

	mu   sync.Mutex
	hits map[string]*window
}

type window struct {
	count int
	ends  time.Time
}

// NewMemoryRateLimiter returns a limiter for a single API process.
func NewMemoryRateLimiter() RateLimiter {
	return newWindowCounter(time.Now, sweepInterval)
}

func newWindowCounter(now func() time.Time, sweepEvery time.Duration) *windowCounter {
	ctx, cancel := context.WithCancel(context.Background())
	wc := &windowCounter{now: now, cancel: cancel, hits: make(map[string]*window)}
	go wc.sweep(ctx, sweepEvery)
	return wc
}

func (wc *windowCounter) Allow(key string, limit int, span time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if span <= 0 {
		span = time.Minute
	}
	now := wc.now()

	wc.mu.Lock()
	defer wc.mu.Unlock()
	w, ok := wc.hits[key]
	if !ok || !now.Before(w.ends) {
		w = &window{ends: now.Add(span)}
		wc.hits[key] = w
	}
	if w.count >= limit {
		return rateDecision{count: w.count, windowEnd: w.ends}
	}
	w.count++
	return rateDecision{allowed: true, count: w.count, windowEnd: w.ends}
}

func (wc *windowCounter) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wc.prune(wc.now())
		}
	}
}

func (wc *windowCounter) prune(now time.Time) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	for key, w := range wc.hits {
		if !now.Before(w.ends) {
			delete(wc.hits, key)
		}
	}
}

// Close stops the sweep. It is safe to call more than once.
func (wc *windowCounter) Close() { wc.cancel() }
