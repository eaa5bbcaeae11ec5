// Package fetch resolves a symbol against an ordered list of providers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketquotes/internal/logger"
	"marketquotes/internal/metrics"
	"marketquotes/internal/provider"
)

// DefaultTimeout bounds every provider attempt when none is configured.
const DefaultTimeout = 5 * time.Second

// Fetcher tries Providers in priority order, one attempt each, and returns the
// first success. It never retries and never returns an untyped failure.
//
// Fallback, when set, answers after the providers. Provider attempts are cut
// short so it still runs before the caller's deadline, and it runs even when
// ctx is already done.
type Fetcher struct {
	Providers []provider.Provider
	Fallback  provider.Provider
	Timeout   time.Duration
	// Reserve is the part of the caller's deadline kept for Fallback. Zero
	// keeps a tenth of the time left.
	Reserve time.Duration
	Log     *logger.Log
}

func New(timeout time.Duration, log *logger.Log, providers ...provider.Provider) *Fetcher {
	return &Fetcher{Providers: providers, Timeout: timeout, Log: log}
}

// Fetch resolves symbol. When every attempt fails a multi-provider chain
// reports StatusNotFound; a single provider keeps its own classified status.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) provider.Result {
	chain := len(f.Providers)
	if f.Fallback != nil {
		chain++
	}
	if chain == 0 {
		return provider.Result{Status: provider.StatusError, Err: errors.New("fetch: no providers configured")}
	}
	log := logger.OrDiscard(f.Log).WithComponent("fetch")

	var last provider.Result
	errs := make([]error, 0, chain)
	failed := func(res provider.Result) {
		entry := log.WithFields(logger.Fields{
			"provider": res.Provider,
			"symbol":   symbol,
			"status":   res.Status.String(),
		}).WithError(res.Err)
		if res.Status == provider.StatusThrottled {
			entry.Debug("provider skipped")
		} else {
			entry.Warn("provider attempt failed")
		}
		errs = append(errs, fmt.Errorf("%s: %w", res.Provider, res.Err))
		last = res
	}

	for _, p := range f.Providers {
		timeout, ok := f.budget(ctx)
		if !ok {
			if f.Fallback == nil {
				err := ctx.Err()
				if err == nil {
					err = context.DeadlineExceeded
				}
				return provider.Result{Status: provider.Classify(err), Err: err}
			}
			break
		}
		res := f.attempt(ctx, p, symbol, timeout)
		if res.OK() {
			return res
		}
		failed(res)
	}

	if f.Fallback != nil {
		res := f.attempt(context.WithoutCancel(ctx), f.Fallback, symbol, f.timeout())
		if res.OK() {
			return res
		}
		failed(res)
	}

	if chain == 1 {
		return last
	}
	return provider.Result{
		Status: provider.StatusNotFound,
		Err:    fmt.Errorf("%w: all providers failed: %w", provider.ErrNotFound, errors.Join(errs...)),
	}
}

func (f *Fetcher) timeout() time.Duration {
	if f.Timeout <= 0 {
		return DefaultTimeout
	}
	return f.Timeout
}

// budget is how long the next provider attempt may take. With a Fallback
// the attempt ends Reserve before ctx's deadline; false means no attempt fits.
func (f *Fetcher) budget(ctx context.Context) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	timeout := f.timeout()
	deadline, ok := ctx.Deadline()
	if !ok || f.Fallback == nil {
		return timeout, true
	}
	left := time.Until(deadline)
	reserve := f.Reserve
	if reserve <= 0 {
		reserve = left / 10
	}
	left -= reserve
	if left <= 0 {
		return 0, false
	}
	return min(timeout, left), true
}

// attempt runs one provider call under its own deadline. The call runs in a
// goroutine so a provider that ignores ctx is abandoned at the deadline.
func (f *Fetcher) attempt(ctx context.Context, p provider.Provider, symbol string, timeout time.Duration) provider.Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := p.Name()
	start := time.Now()
	done := make(chan provider.Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- provider.Result{Status: provider.StatusError, Provider: name, Err: fmt.Errorf("provider panic: %v", rec)}
			}
		}()
		q, err := p.Fetch(ctx, symbol)
		if err != nil {
			done <- provider.Result{Status: provider.Classify(err), Provider: name, Err: err}
			return
		}
		done <- provider.Result{Quote: q, Status: provider.StatusOK, Provider: name}
	}()

	var res provider.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = provider.Result{Status: provider.Classify(ctx.Err()), Provider: name, Err: ctx.Err()}
	}
	metrics.RecordProviderFetch(name, res.Status.String(), time.Since(start))
	return res
}
