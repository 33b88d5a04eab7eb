// Package ratelimit implements per-client token buckets kept in an expiring in-memory map.
package ratelimit

import (
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Rule allows Requests per Window for each key. The full allowance may be spent in one burst.
type Rule struct {
	Requests int
	Window   time.Duration
}

// Limiter tracks one token bucket per key. Idle buckets are evicted once they would be full again.
type Limiter struct {
	name    string
	rule    Rule
	every   rate.Limit
	buckets *gocache.Cache
	now     func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter named name enforcing rule
func New(name string, rule Rule, opts ...Option) *Limiter {
	if rule.Requests < 1 {
		rule.Requests = 1
	}
	if rule.Window <= 0 {
		rule.Window = time.Minute
	}

	l := &Limiter{
		name:    name,
		rule:    rule,
		every:   rate.Limit(float64(rule.Requests) / rule.Window.Seconds()),
		buckets: gocache.New(rule.Window, rule.Window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name identifies the limiter in logs
func (l *Limiter) Name() string {
	return l.name
}

// Rule returns the enforced rule
func (l *Limiter) Rule() Rule {
	return l.rule
}

// Allow takes one token for key. When none is left it reports how long until the next one.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	bucket := l.bucket(key)

	reservation := bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return false, l.rule.Window
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Remaining reports the whole tokens currently available to key
func (l *Limiter) Remaining(key string) int {
	tokens := l.bucket(key).TokensAt(l.now())
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

// Reset forgets every bucket
func (l *Limiter) Reset() {
	l.buckets.Flush()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if v, ok := l.buckets.Get(key); ok {
		bucket := v.(*rate.Limiter)
		l.buckets.Set(key, bucket, l.rule.Window)
		return bucket
	}

	bucket := rate.NewLimiter(l.every, l.rule.Requests)
	if err := l.buckets.Add(key, bucket, l.rule.Window); err != nil {
		// another request created it first
		if v, ok := l.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return bucket
}

// RetryAfterSeconds rounds d up to whole seconds, never below 1
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
