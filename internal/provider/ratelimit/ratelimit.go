package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"marketquotes/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls wait their turn, or return early if the context is
// canceled.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	lim *rate.Limiter
}

func NewMinInterval(p provider.Provider, interval time.Duration) *MinInterval {
	m := &MinInterval{P: p, Interval: interval}
	if interval > 0 {
		m.lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return m
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	if m.lim != nil {
		if err := m.lim.Wait(ctx); err != nil {
			return provider.Quote{}, throttled(m.P.Name(), err)
		}
	}
	return m.P.Fetch(ctx, symbol)
}
