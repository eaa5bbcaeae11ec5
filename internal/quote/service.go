// Package quote orchestrates quote requests: admission, cache lookup,
// resolution through providers and cache writes.
package quote

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"marketquotes/internal/cache"
	"marketquotes/internal/logger"
	"marketquotes/internal/metrics"
	"marketquotes/internal/provider"
	"marketquotes/internal/validate"
)

// DefaultConcurrency bounds how many batch members resolve at once. It lets a
// full batch start together, so no member waits on another's deadline.
const DefaultConcurrency = validate.MaxBatch

// Resolver turns a normalized identifier into a typed provider result.
// *fetch.Fetcher is the production implementation.
type Resolver interface {
	Fetch(ctx context.Context, id string) provider.Result
}

// Service serves one endpoint on top of the shared State.
type Service struct {
	Endpoint Endpoint

	state       *State
	resolver    Resolver
	log         *logger.Entry
	concurrency int
	flights     singleflight.Group
}

type Option func(*Service)

func WithLogger(l *logger.Log) Option {
	return func(s *Service) {
		s.log = logger.OrDiscard(l).WithComponent("quote").WithFields(logger.Fields{"endpoint": s.Endpoint.Name})
	}
}

// WithConcurrency sets the batch fan-out bound. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewService(ep Endpoint, state *State, resolver Resolver, opts ...Option) (*Service, error) {
	if ep.Name == "" {
		return nil, errors.New("quote: endpoint name is required")
	}
	if state == nil || state.Items == nil || state.Batches == nil {
		return nil, errors.New("quote: state is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("quote: %s: resolver is required", ep.Name)
	}
	s := &Service{
		Endpoint:    ep,
		state:       state,
		resolver:    resolver,
		concurrency: DefaultConcurrency,
	}
	s.log = logger.Discard().WithComponent("quote").WithFields(logger.Fields{"endpoint": ep.Name})
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get resolves one identifier. Validation and admission failures return
// before any cache or provider work.
func (s *Service) Get(ctx context.Context, clientKey, raw string) (provider.Quote, error) {
	id, err := s.Endpoint.Rules.Identifier(raw)
	if err != nil {
		return provider.Quote{}, invalid(err)
	}
	if err := s.admit(clientKey); err != nil {
		return provider.Quote{}, err
	}
	return s.item(ctx, id)
}

// Batch resolves up to validate.MaxBatch identifiers. The result maps each
// identifier as the caller sent it to its quote; members that fail are left
// out. Batch fails only when no member resolves.
func (s *Service) Batch(ctx context.Context, clientKey string, raws []string) (map[string]provider.Quote, error) {
	members, err := s.Endpoint.Rules.List(raws, validate.MaxBatch)
	if err != nil {
		return nil, invalid(err)
	}
	if err := s.admit(clientKey); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	ids = cache.Canonical(ids)
	key := cache.BatchKey(s.Endpoint.Name, ids)

	if resolved, ok := s.state.Batches.Get(key); ok {
		metrics.RecordCacheLookup(s.Endpoint.Name, "batch", true)
		return byOriginal(members, resolved), nil
	}
	metrics.RecordCacheLookup(s.Endpoint.Name, "batch", false)

	resolved, failures := s.resolveAll(ctx, ids)
	if len(resolved) == 0 {
		return nil, batchError(failures)
	}
	s.state.Batches.Set(key, resolved, s.Endpoint.BatchTTL)
	return byOriginal(members, resolved), nil
}

func (s *Service) admit(clientKey string) error {
	if s.state.Limiter == nil {
		return nil
	}
	d := s.state.Limiter.Admit(clientKey)
	if d.Allowed {
		return nil
	}
	metrics.RecordRateLimited(s.Endpoint.Name)
	s.log.WithFields(logger.Fields{"client": clientKey, "retry_after": d.RetryAfter.String()}).Info("rate limited")
	return &Error{
		Kind:       RateLimited,
		Message:    fmt.Sprintf("rate limit of %d requests exceeded", d.Limit),
		RetryAfter: d.RetryAfter,
	}
}

// item serves id from the item cache or resolves and stores it. Concurrent
// misses on the same key share one resolution; each caller still stops
// waiting when its own ctx ends.
func (s *Service) item(ctx context.Context, id string) (provider.Quote, error) {
	key := cache.ItemKey(s.Endpoint.Name, id)
	if q, ok := s.state.Items.Get(key); ok {
		metrics.RecordCacheLookup(s.Endpoint.Name, "item", true)
		return q, nil
	}
	metrics.RecordCacheLookup(s.Endpoint.Name, "item", false)

	if err := ctx.Err(); err != nil {
		return provider.Quote{}, resultError(id, provider.Result{Status: provider.Classify(err), Err: err})
	}

	ch := s.flights.DoChan(key, func() (any, error) {
		if q, ok := s.state.Items.Get(key); ok {
			return q, nil
		}
		shared, cancel := detach(ctx)
		defer cancel()
		res := s.resolver.Fetch(shared, id)
		if !res.OK() {
			return nil, resultError(id, res)
		}
		s.state.Items.Set(key, res.Quote, s.Endpoint.ItemTTL)
		return res.Quote, nil
	})

	select {
	case <-ctx.Done():
		return provider.Quote{}, resultError(id, provider.Result{Status: provider.Classify(ctx.Err()), Err: ctx.Err()})
	case r := <-ch:
		if r.Err != nil {
			return provider.Quote{}, r.Err
		}
		return r.Val.(provider.Quote), nil
	}
}

// detach keeps ctx's values and deadline but drops its cancellation, so a
// shared fetch outlives the caller that started it and still ends.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	shared := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(shared, deadline)
	}
	return shared, func() {}
}

type outcome struct {
	id  string
	q   provider.Quote
	err error
}

// resolveAll resolves ids concurrently. One member's failure never cancels the
// others.
func (s *Service) resolveAll(ctx context.Context, ids []string) (map[string]provider.Quote, []error) {
	outcomes := make([]outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			q, err := s.item(ctx, id)
			outcomes[i] = outcome{id: id, q: q, err: err}
			return nil
		})
	}
	_ = g.Wait()

	resolved := make(map[string]provider.Quote, len(ids))
	var failures []error
	for _, o := range outcomes {
		if o.err != nil {
			s.log.WithFields(logger.Fields{"symbol": o.id, "kind": KindOf(o.err).String()}).
				WithError(o.err).Warn("batch member unresolved")
			failures = append(failures, o.err)
			continue
		}
		resolved[o.id] = o.q
	}
	return resolved, failures
}

func byOriginal(members []validate.Member, resolved map[string]provider.Quote) map[string]provider.Quote {
	out := make(map[string]provider.Quote, len(members))
	for _, m := range members {
		if q, ok := resolved[m.ID]; ok {
			out[m.Raw] = q
		}
	}
	return out
}

// batchError reports a batch in which nothing resolved: the members' common
// kind when they agree, NotFound otherwise.
func batchError(failures []error) *Error {
	kind := NotFound
	for i, err := range failures {
		k := KindOf(err)
		if i == 0 {
			kind = k
			continue
		}
		if k != kind {
			kind = NotFound
			break
		}
	}
	return &Error{
		Kind:    kind,
		Message: "none of the requested identifiers could be resolved",
		Err:     errors.Join(failures...),
	}
}

func invalid(err error) *Error {
	return &Error{Kind: InvalidInput, Message: err.Error(), Err: err}
}
