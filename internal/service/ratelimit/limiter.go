package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultSweepEvery = time.Minute

type entry struct {
	lim  *rate.Limiter
	full time.Duration // time to refill the whole burst
	seen time.Time
}

// Limiter holds one rate.Limiter per key. Keys idle long enough to be fully
// refilled are evicted on access.
type Limiter struct {
	mu         sync.Mutex
	m          map[string]*entry
	now        func() time.Time
	sweepEvery time.Duration
	lastSweep  time.Time
}

type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSweepEvery sets how often idle keys are evicted.
func WithSweepEvery(d time.Duration) Option {
	return func(l *Limiter) { l.sweepEvery = d }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{m: make(map[string]*entry), now: time.Now, sweepEvery: defaultSweepEvery}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow returns true if one event for key fits a burst refilled one token per every.
func (l *Limiter) Allow(key string, burst int, every time.Duration) bool {
	ok, _ := l.Reserve(key, burst, every)
	return ok
}

// Reserve takes one token for key. When none is available nothing is
// consumed and the wait until the next token is returned.
func (l *Limiter) Reserve(key string, burst int, every time.Duration) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Every(every), burst), full: every * time.Duration(burst)}
		l.m[key] = e
	}
	e.seen = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) sweep(now time.Time) {
	if l.sweepEvery <= 0 || now.Sub(l.lastSweep) < l.sweepEvery {
		return
	}
	l.lastSweep = now
	for k, e := range l.m {
		if now.Sub(e.seen) >= e.full {
			delete(l.m, k)
		}
	}
}

// Cooldown allows one action per key every period.
type Cooldown struct {
	l      *Limiter
	period time.Duration
}

// NewCooldown returns nil when period is not positive, which allows everything.
func NewCooldown(period time.Duration, opts ...Option) *Cooldown {
	if period <= 0 {
		return nil
	}
	return &Cooldown{l: New(opts...), period: period}
}

// Allow consumes the key's slot, or reports how long until it frees up.
func (c *Cooldown) Allow(key string) (bool, time.Duration) {
	if c == nil {
		return true, 0
	}
	return c.l.Reserve(key, 1, c.period)
}

// Period is the configured cooldown.
func (c *Cooldown) Period() time.Duration {
	if c == nil {
		return 0
	}
	return c.period
}
