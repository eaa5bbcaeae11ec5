package quote_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketquotes/internal/limiter"
	"marketquotes/internal/provider"
	"marketquotes/internal/quote"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingResolver answers from fn and counts calls per identifier.
type countingResolver struct {
	fn    func(ctx context.Context, id string) provider.Result
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func newResolver(fn func(ctx context.Context, id string) provider.Result) *countingResolver {
	return &countingResolver{fn: fn, calls: map[string]int{}}
}

func (r *countingResolver) Fetch(ctx context.Context, id string) provider.Result {
	r.total.Add(1)
	r.mu.Lock()
	r.calls[id]++
	r.mu.Unlock()
	return r.fn(ctx, id)
}

func (r *countingResolver) Calls(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

// stubQuote resolves every id to a fixed price.
func stubQuote(_ context.Context, id string) provider.Result {
	return provider.Result{Status: provider.StatusOK, Provider: "stub", Quote: provider.Quote{Symbol: id, Source: "stub"}}
}

// recordingLimiter admits everything and counts checks.
type recordingLimiter struct{ admits atomic.Int64 }

func (l *recordingLimiter) Admit(string) limiter.Decision {
	l.admits.Add(1)
	return limiter.Decision{Allowed: true, Limit: 100, Remaining: 99}
}

func (l *recordingLimiter) Sweep() int { return 0 }

var june15 = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newState(t *testing.T, c *clock, requests int) *quote.State {
	t.Helper()
	st, err := quote.NewState(quote.StateConfig{
		Limiter: limiter.Config{Requests: requests, Window: time.Minute},
		Now:     c.Now,
	})
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return st
}
