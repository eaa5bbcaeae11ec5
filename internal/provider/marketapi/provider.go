package marketapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketquotes/internal/provider"
)

type Config struct {
	Name     string        // display name, default: marketapi
	Kind     provider.Kind // instrument class this adapter serves
	Currency string        // used when the payload carries none
	Now      func() time.Time
}

// Provider adapts Client to provider.Provider for one instrument class.
type Provider struct {
	cfg    Config
	client *Client
}

func New(cfg Config, client *Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("marketapi: nil client")
	}
	if cfg.Kind == "" {
		return nil, errors.New("marketapi: kind is required")
	}
	if cfg.Name == "" {
		cfg.Name = "marketapi"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{cfg: cfg, client: client}, nil
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	snap, err := p.client.GetQuote(ctx, string(p.cfg.Kind), symbol)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}

	now := p.cfg.Now().UTC()
	q := provider.Quote{
		Symbol:     symbol,
		Kind:       p.cfg.Kind,
		Name:       snap.Name,
		Price:      snap.Price,
		Currency:   snap.Currency,
		Source:     p.cfg.Name,
		AsOf:       now,
		ReceivedAt: now,
	}
	if q.Currency == "" {
		q.Currency = p.cfg.Currency
	}
	if snap.Timestamp != nil {
		q.AsOf = *snap.Timestamp
	}
	if snap.PreviousClose != nil {
		q.PreviousClose = *snap.PreviousClose
	}
	switch {
	case snap.Change != nil:
		q.Change = *snap.Change
	case snap.PreviousClose != nil:
		q.Change = q.Price.Sub(q.PreviousClose)
	}
	switch {
	case snap.ChangePercent != nil:
		q.ChangePercent = *snap.ChangePercent
	case q.PreviousClose.IsPositive():
		q.ChangePercent = q.Change.Div(q.PreviousClose).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return q, nil
}
