package quote

import (
	"time"

	"marketquotes/internal/cache"
	"marketquotes/internal/limiter"
	"marketquotes/internal/provider"
)

// State is the process-wide mutable state shared by every endpoint service:
// the item cache, the batch cache and the client limiter.
type State struct {
	Items   *cache.Cache[provider.Quote]
	Batches *cache.Cache[map[string]provider.Quote]
	Limiter limiter.Limiter
}

type StateConfig struct {
	MaxItems int
	Limiter  limiter.Config
	Now      func() time.Time
}

func NewState(cfg StateConfig) (*State, error) {
	if cfg.Limiter.Now == nil {
		cfg.Limiter.Now = cfg.Now
	}
	lim, err := limiter.New(cfg.Limiter)
	if err != nil {
		return nil, err
	}
	opts := cache.Options{MaxItems: cfg.MaxItems, Now: cfg.Now}
	return &State{
		Items:   cache.New[provider.Quote](opts),
		Batches: cache.New[map[string]provider.Quote](opts),
		Limiter: lim,
	}, nil
}

// SweepStats counts what one Sweep removed.
type SweepStats struct {
	Items   int
	Batches int
	Clients int
}

// Sweep drops expired cache entries and idle limiter state.
func (s *State) Sweep() SweepStats {
	st := SweepStats{
		Items:   s.Items.Sweep(),
		Batches: s.Batches.Sweep(),
	}
	if s.Limiter != nil {
		st.Clients = s.Limiter.Sweep()
	}
	return st
}
