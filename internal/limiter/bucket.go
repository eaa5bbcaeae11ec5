package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucketEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// Bucket keeps a token bucket per client key refilling limit tokens per
// period with a burst of limit, so no window of length period can admit more
// than 2*limit and a cold key admits at most limit at once.
type Bucket struct {
	limit  int
	period time.Duration
	rate   rate.Limit
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*bucketEntry
}

func NewBucket(limit int, period time.Duration, now func() time.Time) *Bucket {
	if now == nil {
		now = time.Now
	}
	return &Bucket{
		limit:    limit,
		period:   period,
		rate:     rate.Limit(float64(limit) / period.Seconds()),
		now:      now,
		limiters: make(map[string]*bucketEntry),
	}
}

func (b *Bucket) getLimiter(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.limiters[key]
	if !ok {
		e = &bucketEntry{limiter: rate.NewLimiter(b.rate, b.limit)}
		b.limiters[key] = e
	}
	e.seen = now
	return e.limiter
}

func (b *Bucket) Admit(key string) Decision {
	now := b.now()
	lim := b.getLimiter(key, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, Limit: b.limit, RetryAfter: b.period}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Limit: b.limit, RetryAfter: delay}
	}
	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: b.limit, Remaining: remaining}
}

// Sweep drops buckets idle for at least one full period; such a bucket has
// refilled completely, so dropping it changes no decision.
func (b *Bucket) Sweep() int {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for k, e := range b.limiters {
		if now.Sub(e.seen) >= b.period {
			delete(b.limiters, k)
			removed++
		}
	}
	return removed
}
