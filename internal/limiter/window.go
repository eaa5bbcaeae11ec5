package limiter

import (
	"sync"
	"time"
)

// window is the per-client counting state.
type window struct {
	count int
	start time.Time
}

// Window is a fixed counting window per client key. A key's window opens on
// its first request and admits at most limit requests until it closes.
type Window struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewWindow(limit int, period time.Duration, now func() time.Time) *Window {
	if now == nil {
		now = time.Now
	}
	return &Window{
		limit:   limit,
		period:  period,
		now:     now,
		windows: make(map[string]*window),
	}
}

func (w *Window) Admit(key string) Decision {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()

	win, ok := w.windows[key]
	if !ok || !now.Before(win.start.Add(w.period)) {
		win = &window{start: now}
		w.windows[key] = win
	}
	if win.count >= w.limit {
		return Decision{
			Allowed:    false,
			Limit:      w.limit,
			Remaining:  0,
			RetryAfter: win.start.Add(w.period).Sub(now),
		}
	}
	win.count++
	return Decision{Allowed: true, Limit: w.limit, Remaining: w.limit - win.count}
}

func (w *Window) Sweep() int {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	removed := 0
	for k, win := range w.windows {
		if !now.Before(win.start.Add(w.period)) {
			delete(w.windows, k)
			removed++
		}
	}
	return removed
}
