package commands

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Cooldowns hands out one token-bucket limiter per key (usually
// "guild:member"). Idle limiters are dropped once they have refilled.
type Cooldowns struct {
	mu       sync.Mutex
	limiters map[string]*cooldownEntry
	every    time.Duration
	burst    int
	now      func() time.Time
}

type cooldownEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewCooldowns allows burst uses per key, refilling one every interval.
func NewCooldowns(burst int, every time.Duration) *Cooldowns {
	return &Cooldowns{
		limiters: make(map[string]*cooldownEntry),
		every:    every,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow consumes a token for key. When none is available it returns false and
// how long until the next one.
func (c *Cooldowns) Allow(key string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.limiters[key]
	if !ok {
		if len(c.limiters) > 5000 {
			c.prune(now)
		}
		e = &cooldownEntry{lim: rate.NewLimiter(rate.Every(c.every), c.burst)}
		c.limiters[key] = e
	}
	e.seen = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, c.every
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// prune drops limiters idle long enough to be full again.
func (c *Cooldowns) prune(now time.Time) {
	idle := c.every * time.Duration(c.burst)
	for key, e := range c.limiters {
		if now.Sub(e.seen) > idle {
			delete(c.limiters, key)
		}
	}
}
