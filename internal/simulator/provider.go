package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketquotes/internal/provider"
)

// Config controls a simulated Provider.
type Config struct {
	Name     string
	Kind     provider.Kind
	Location *time.Location     // calendar used for the date seed; UTC when nil
	Rates    map[string]float64 // forex base table; DefaultForexRates when nil
	Currency string
	Now      func() time.Time
}

// Provider serves simulated quotes for bonds, forex pairs and derivatives.
// It never performs I/O and always resolves.
type Provider struct {
	cfg Config
}

func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Simulator"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Rates == nil {
		cfg.Rates = DefaultForexRates
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Fetch returns the quote for symbol as of today's date in the configured
// location.
func (p *Provider) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	if err := ctx.Err(); err != nil {
		return provider.Quote{}, err
	}
	now := p.cfg.Now()
	return p.At(symbol, now.In(p.cfg.Location), now.UTC())
}

// At computes the quote for symbol on the calendar day of asOf.
func (p *Provider) At(symbol string, asOf time.Time, receivedAt time.Time) (provider.Quote, error) {
	var price, base decimal.Decimal
	currency := p.cfg.Currency
	switch p.cfg.Kind {
	case provider.KindBond:
		price = Bond(symbol, asOf)
		base = decimal.NewFromFloat(BondPar)
	case provider.KindForex:
		pair := NormalizePair(symbol)
		price = Forex(pair, asOf, p.cfg.Rates)
		b, ok := p.cfg.Rates[pair]
		if !ok || b <= 0 {
			b = ForexFallback
		}
		base = decimal.NewFromFloat(b)
		if len(pair) == 6 {
			currency = pair[3:]
		}
	case provider.KindDerivative:
		price = Derivative(symbol, asOf)
		base = decimal.NewFromFloat(DerivativeBase(symbol))
	default:
		return provider.Quote{}, fmt.Errorf("simulator: unsupported kind %q", p.cfg.Kind)
	}

	change := price.Sub(base)
	pct := decimal.Zero
	if !base.IsZero() {
		pct = change.Div(base).Mul(decimal.NewFromInt(100)).Round(4)
	}
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	return provider.Quote{
		Symbol:        symbol,
		Kind:          p.cfg.Kind,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		PreviousClose: base,
		Currency:      currency,
		Source:        p.cfg.Name,
		Simulated:     true,
		AsOf:          day,
		ReceivedAt:    receivedAt,
	}, nil
}
