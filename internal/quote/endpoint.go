package quote

import (
	"time"

	"marketquotes/internal/provider"
	"marketquotes/internal/validate"
)

// Endpoint describes one quote route: how identifiers are validated and how
// long results stay cached.
type Endpoint struct {
	Name     string
	Kind     provider.Kind
	Rules    validate.Rules
	ItemTTL  time.Duration
	BatchTTL time.Duration
	// Simulated endpoints always resolve through the simulator as a last
	// resort.
	Simulated bool
}

var (
	Stocks = Endpoint{
		Name:     "stocks",
		Kind:     provider.KindStock,
		Rules:    validate.Stock,
		ItemTTL:  60 * time.Second,
		BatchTTL: 30 * time.Second,
	}
	Bonds = Endpoint{
		Name:      "bonds",
		Kind:      provider.KindBond,
		Rules:     validate.Bond,
		ItemTTL:   time.Hour,
		BatchTTL:  5 * time.Minute,
		Simulated: true,
	}
	Forex = Endpoint{
		Name:      "forex",
		Kind:      provider.KindForex,
		Rules:     validate.Forex,
		ItemTTL:   5 * time.Minute,
		BatchTTL:  time.Minute,
		Simulated: true,
	}
	MutualFunds = Endpoint{
		Name:     "mutual-funds",
		Kind:     provider.KindMutualFund,
		Rules:    validate.MutualFund,
		ItemTTL:  time.Hour,
		BatchTTL: 5 * time.Minute,
	}
	Derivatives = Endpoint{
		Name:      "derivatives",
		Kind:      provider.KindDerivative,
		Rules:     validate.Derivative,
		ItemTTL:   30 * time.Second,
		BatchTTL:  5 * time.Second,
		Simulated: true,
	}
)

// Endpoints lists the built-in endpoints in route order.
func Endpoints() []Endpoint {
	return []Endpoint{Stocks, Bonds, Forex, MutualFunds, Derivatives}
}
