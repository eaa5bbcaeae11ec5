// Package limiter implements per-client admission control.
package limiter

import (
	"fmt"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects requests per client key. Implementations are safe
// for concurrent use and never admit more than Limit requests per window for
// one key.
type Limiter interface {
	Admit(key string) Decision
	// Sweep drops idle per-key state and returns how many keys were removed.
	Sweep() int
}

const (
	PolicyWindow = "window"
	PolicyBucket = "bucket"
)

// Config selects and sizes a policy.
type Config struct {
	Policy   string
	Requests int
	Window   time.Duration
	Now      func() time.Time
}

// New builds the limiter named by cfg.Policy (window when empty).
func New(cfg Config) (Limiter, error) {
	if cfg.Requests <= 0 {
		return nil, fmt.Errorf("limiter: requests must be positive, got %d", cfg.Requests)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("limiter: window must be positive, got %s", cfg.Window)
	}
	switch cfg.Policy {
	case "", PolicyWindow:
		return NewWindow(cfg.Requests, cfg.Window, cfg.Now), nil
	case PolicyBucket:
		return NewBucket(cfg.Requests, cfg.Window, cfg.Now), nil
	default:
		return nil, fmt.Errorf("limiter: unknown policy %q", cfg.Policy)
	}
}
