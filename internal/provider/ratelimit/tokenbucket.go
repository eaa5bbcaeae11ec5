package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"marketquotes/internal/provider"
)

// TokenBucketProvider wraps a Provider and gates calls using a token bucket.
// A call that cannot get a token before its deadline fails immediately with
// provider.ErrThrottled instead of sleeping into the timeout.
type TokenBucketProvider struct {
	P  provider.Provider
	TB *rate.Limiter
}

// NewTokenBucket builds a limiter with the given refill rate and burst.
func NewTokenBucket(tokensPerSecond float64, burst int) *rate.Limiter {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(tokensPerSecond), burst)
}

func (t *TokenBucketProvider) Name() string { return t.P.Name() }

func (t *TokenBucketProvider) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return provider.Quote{}, throttled(t.P.Name(), err)
		}
	}
	return t.P.Fetch(ctx, symbol)
}

// Wrap prefers a token bucket when a per-minute budget is set, otherwise a
// minimum interval when one is set.
func Wrap(p provider.Provider, maxPerMinute, burst int, minInterval time.Duration) provider.Provider {
	return Pacer(maxPerMinute, burst, minInterval)(p)
}

// Pacer returns a decorator that gates every provider it wraps on one shared
// limiter, for upstreams whose budget spans several instrument classes.
func Pacer(maxPerMinute, burst int, minInterval time.Duration) func(provider.Provider) provider.Provider {
	switch {
	case maxPerMinute > 0:
		tb := NewTokenBucket(float64(maxPerMinute)/60.0, burst)
		return func(p provider.Provider) provider.Provider {
			return &TokenBucketProvider{P: p, TB: tb}
		}
	case minInterval > 0:
		lim := rate.NewLimiter(rate.Every(minInterval), 1)
		return func(p provider.Provider) provider.Provider {
			return &MinInterval{P: p, Interval: minInterval, lim: lim}
		}
	default:
		return func(p provider.Provider) provider.Provider { return p }
	}
}

// throttled marks a wait the limiter refused. A canceled ctx stays a plain
// cancellation.
func throttled(name string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", name, provider.ErrThrottled, err)
}
