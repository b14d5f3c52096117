package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long an unused client bucket is kept
	limiterIdleTTL = 3 * time.Minute

	// limiterSweepSize triggers a sweep of idle buckets
	limiterSweepSize = 1024
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter is a token bucket per client key. rps 0 disables limiting.
type clientLimiter struct {
	mu      sync.Mutex
	rps     float64
	burst   int
	buckets map[string]*bucket
	now     func() time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	return &clientLimiter{
		rps:     rps,
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now.
func (l *clientLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rps <= 0 {
		return true
	}

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= limiterSweepSize {
			l.sweep(now)
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// SetLimit changes the limit for existing and future clients.
func (l *clientLimiter) SetLimit(rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rps = rps
	l.burst = burst
	now := l.now()
	for _, b := range l.buckets {
		b.limiter.SetLimitAt(now, rate.Limit(rps))
		b.limiter.SetBurstAt(now, burst)
	}
}

func (l *clientLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.buckets, key)
		}
	}
}
