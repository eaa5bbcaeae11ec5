// Package yahoo serves live quotes from Yahoo Finance through
// piquette/finance-go.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/forex"
	"github.com/piquette/finance-go/mutualfund"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"marketquotes/internal/provider"
)

// Backend looks up one Yahoo symbol. A nil quote with a nil error means the
// symbol is unknown.
type Backend func(symbol string) (*finance.Quote, error)

// QuoteBackend resolves equities, indices and anything else the plain quote
// endpoint knows about.
func QuoteBackend(symbol string) (*finance.Quote, error) {
	return quote.Get(symbol)
}

func MutualFundBackend(symbol string) (*finance.Quote, error) {
	mf, err := mutualfund.Get(symbol)
	if err != nil || mf == nil {
		return nil, err
	}
	return &mf.Quote, nil
}

func ForexBackend(symbol string) (*finance.Quote, error) {
	fx, err := forex.Get(symbol)
	if err != nil || fx == nil {
		return nil, err
	}
	return &fx.Quote, nil
}

type Config struct {
	Name    string        // display name, default: yahoo
	Kind    provider.Kind // instrument class this adapter serves
	Suffix  string        // appended to stock symbols, e.g. ".NS"
	Backend Backend       // default picked from Kind
	Now     func() time.Time
}

type Provider struct {
	cfg Config
}

func New(cfg Config) (*Provider, error) {
	if cfg.Kind == "" {
		return nil, errors.New("yahoo: kind is required")
	}
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Backend == nil {
		switch cfg.Kind {
		case provider.KindMutualFund:
			cfg.Backend = MutualFundBackend
		case provider.KindForex:
			cfg.Backend = ForexBackend
		default:
			cfg.Backend = QuoteBackend
		}
	}
	return &Provider{cfg: cfg}, nil
}

func (p *Provider) Name() string { return p.cfg.Name }

// Symbol maps a normalized identifier to the Yahoo ticker.
func (p *Provider) Symbol(id string) string {
	switch p.cfg.Kind {
	case provider.KindForex:
		if !strings.HasSuffix(id, "=X") {
			return id + "=X"
		}
	case provider.KindStock:
		if p.cfg.Suffix != "" && !strings.Contains(id, ".") && !strings.HasPrefix(id, "^") {
			return id + p.cfg.Suffix
		}
	}
	return id
}

type lookup struct {
	q   *finance.Quote
	err error
}

// Fetch calls the backend on its own goroutine; the library takes no
// context, so a canceled ctx abandons the call rather than aborting it.
func (p *Provider) Fetch(ctx context.Context, id string) (provider.Quote, error) {
	if err := ctx.Err(); err != nil {
		return provider.Quote{}, err
	}

	symbol := p.Symbol(id)
	done := make(chan lookup, 1)
	go func() {
		q, err := p.cfg.Backend(symbol)
		done <- lookup{q: q, err: err}
	}()

	var res lookup
	select {
	case <-ctx.Done():
		return provider.Quote{}, ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		return provider.Quote{}, fmt.Errorf("yahoo %s: %w", symbol, res.err)
	}
	if res.q == nil || res.q.RegularMarketPrice <= 0 {
		return provider.Quote{}, fmt.Errorf("yahoo %s: %w", symbol, provider.ErrNotFound)
	}
	return p.convert(id, res.q), nil
}

func (p *Provider) convert(id string, fq *finance.Quote) provider.Quote {
	now := p.cfg.Now().UTC()
	q := provider.Quote{
		Symbol:        id,
		Kind:          p.cfg.Kind,
		Name:          fq.ShortName,
		Price:         decimal.NewFromFloat(fq.RegularMarketPrice),
		Change:        decimal.NewFromFloat(fq.RegularMarketChange),
		ChangePercent: decimal.NewFromFloat(fq.RegularMarketChangePercent).Round(4),
		PreviousClose: decimal.NewFromFloat(fq.RegularMarketPreviousClose),
		Currency:      strings.ToUpper(fq.CurrencyID),
		Source:        p.cfg.Name,
		AsOf:          now,
		ReceivedAt:    now,
	}
	if fq.RegularMarketTime > 0 {
		q.AsOf = time.Unix(int64(fq.RegularMarketTime), 0).UTC()
	}
	return q
}
