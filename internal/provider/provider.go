package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the instrument class a quote belongs to.
type Kind string

const (
	KindStock      Kind = "stock"
	KindBond       Kind = "bond"
	KindForex      Kind = "forex"
	KindMutualFund Kind = "mutual_fund"
	KindDerivative Kind = "derivative"
)

// Quote is the normalized shape returned by all providers.
// Prices are decimals so they serialize as exact strings.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Kind          Kind            `json:"kind"`
	Name          string          `json:"name,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Currency      string          `json:"currency,omitempty"`
	Source        string          `json:"source"`
	Simulated     bool            `json:"simulated"`
	AsOf          time.Time       `json:"as_of"`
	ReceivedAt    time.Time       `json:"received_at"`
}

var (
	// ErrNotFound reports that the upstream has no data for the symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrMalformed reports an upstream payload that failed schema checks.
	ErrMalformed = errors.New("malformed upstream payload")
	// ErrThrottled reports that a call was not sent because the upstream
	// budget had no room for it before the deadline.
	ErrThrottled = errors.New("upstream budget exhausted")
)

// Provider resolves a single normalized symbol into a Quote.
//
//go:generate mockgen -package=providermock -destination=providermock/provider.go -source=provider.go Provider
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Quote, error)
}
