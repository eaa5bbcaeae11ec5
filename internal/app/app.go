// Package app assembles the quote services from configuration.
package app

import (
	"fmt"
	"maps"
	"time"

	"marketquotes/internal/config"
	"marketquotes/internal/httpx"
	"marketquotes/internal/limiter"
	"marketquotes/internal/logger"
	"marketquotes/internal/provider"
	"marketquotes/internal/provider/fetch"
	"marketquotes/internal/provider/marketapi"
	"marketquotes/internal/provider/ratelimit"
	"marketquotes/internal/provider/yahoo"
	"marketquotes/internal/quote"
	"marketquotes/internal/simulator"
)

// App holds the shared state and one service per endpoint.
type App struct {
	State    *quote.State
	services map[string]*quote.Service
	order    []string
}

// Options tweaks construction, mostly for tests.
type Options struct {
	Now        func() time.Time
	HTTPClient marketapi.HTTPClient
	// Yahoo replaces the finance-go lookups.
	Yahoo yahoo.Backend
}

func New(cfg config.Config, log *logger.Log, opts Options) (*App, error) {
	log = logger.OrDiscard(log)

	state, err := quote.NewState(quote.StateConfig{
		MaxItems: cfg.Cache.MaxItems,
		Limiter: limiter.Config{
			Policy:   cfg.RateLimit.Policy,
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateWindow(),
		},
		Now: opts.Now,
	})
	if err != nil {
		return nil, err
	}

	chains, err := newChains(cfg, opts)
	if err != nil {
		return nil, err
	}

	a := &App{State: state, services: map[string]*quote.Service{}}
	for _, ep := range quote.Endpoints() {
		if item, batch, ok := cfg.TTLs(ep.Name); ok {
			ep.ItemTTL, ep.BatchTTL = item, batch
		}
		fetcher := fetch.New(cfg.FetchTimeout(), log, chains.For(ep)...)
		fetcher.Fallback = chains.Fallback(ep)

		names := make([]string, 0, len(fetcher.Providers)+1)
		for _, p := range fetcher.Providers {
			names = append(names, p.Name())
		}
		if fetcher.Fallback != nil {
			names = append(names, fetcher.Fallback.Name())
		}
		if len(names) == 0 {
			log.WithFields(logger.Fields{"endpoint": ep.Name}).Warn("no providers enabled, every request will fail")
		}
		log.WithFields(logger.Fields{"endpoint": ep.Name, "providers": names}).Info("endpoint configured")

		svc, err := quote.NewService(ep, state, fetcher,
			quote.WithLogger(log),
			quote.WithConcurrency(cfg.Fetch.BatchConcurrency),
		)
		if err != nil {
			return nil, err
		}
		a.services[ep.Name] = svc
		a.order = append(a.order, ep.Name)
	}
	return a, nil
}

// Service returns the service for an endpoint name such as "bonds".
func (a *App) Service(name string) (*quote.Service, bool) {
	svc, ok := a.services[name]
	return svc, ok
}

// Services returns every service in route order.
func (a *App) Services() []*quote.Service {
	out := make([]*quote.Service, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.services[name])
	}
	return out
}

// chains builds per-kind provider lists, yahoo then marketapi, with the
// simulator as the fallback of simulated endpoints.
type chains struct {
	yahoo     map[provider.Kind]provider.Provider
	marketapi map[provider.Kind]provider.Provider
	sim       map[provider.Kind]provider.Provider
}

func (c *chains) For(ep quote.Endpoint) []provider.Provider {
	var out []provider.Provider
	if p, ok := c.yahoo[ep.Kind]; ok {
		out = append(out, p)
	}
	if p, ok := c.marketapi[ep.Kind]; ok {
		out = append(out, p)
	}
	return out
}

// Fallback is the simulator for simulated endpoints, nil otherwise.
func (c *chains) Fallback(ep quote.Endpoint) provider.Provider {
	if !ep.Simulated {
		return nil
	}
	return c.sim[ep.Kind]
}

func newChains(cfg config.Config, opts Options) (*chains, error) {
	c := &chains{
		yahoo:     map[provider.Kind]provider.Provider{},
		marketapi: map[provider.Kind]provider.Provider{},
		sim:       map[provider.Kind]provider.Provider{},
	}

	if cfg.Yahoo.Enabled {
		pace := ratelimit.Pacer(cfg.Yahoo.MaxRequestsPerMinute, cfg.Yahoo.Burst, cfg.Yahoo.MinInterval())
		for _, k := range cfg.Yahoo.Kinds {
			kind := provider.Kind(k)
			p, err := yahoo.New(yahoo.Config{Kind: kind, Suffix: cfg.Yahoo.StockSuffix, Backend: opts.Yahoo, Now: opts.Now})
			if err != nil {
				return nil, err
			}
			c.yahoo[kind] = pace(p)
		}
	}

	if cfg.MarketAPI.Enabled {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = httpx.New(time.Duration(cfg.MarketAPI.TimeoutMs) * time.Millisecond)
		}
		client, err := marketapi.NewClient(cfg.MarketAPI.APIKey,
			marketapi.WithBaseURL(cfg.MarketAPI.Endpoint),
			marketapi.WithHTTPClient(httpClient),
			marketapi.WithPaths(marketapi.Paths(cfg.MarketAPI.Paths)),
		)
		if err != nil {
			return nil, fmt.Errorf("marketapi: %w", err)
		}
		pace := ratelimit.Pacer(cfg.MarketAPI.MaxRequestsPerMinute, cfg.MarketAPI.Burst, cfg.MarketAPI.MinInterval())
		for _, k := range cfg.MarketAPI.Kinds {
			kind := provider.Kind(k)
			p, err := marketapi.New(marketapi.Config{
				Name:     cfg.MarketAPI.Name,
				Kind:     kind,
				Currency: cfg.MarketAPI.Currency,
				Now:      opts.Now,
			}, client)
			if err != nil {
				return nil, err
			}
			c.marketapi[kind] = pace(p)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rates := maps.Clone(simulator.DefaultForexRates)
	for pair, rate := range cfg.Simulator.ForexRates {
		rates[simulator.NormalizePair(pair)] = rate
	}
	for _, kind := range []provider.Kind{provider.KindBond, provider.KindForex, provider.KindDerivative} {
		c.sim[kind] = simulator.New(simulator.Config{
			Name:     "simulator",
			Kind:     kind,
			Location: loc,
			Rates:    rates,
			Currency: currencyFor(kind),
			Now:      opts.Now,
		})
	}

	return c, nil
}

// currencyFor is the default currency of simulated quotes.
func currencyFor(kind provider.Kind) string {
	switch kind {
	case provider.KindBond, provider.KindDerivative:
		return "INR"
	default:
		return ""
	}
}
