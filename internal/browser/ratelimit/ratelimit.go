// Package ratelimit throttles page navigations per domain during a deep
// scan, grounded on the teacher's crawler.RateLimiter (per-domain map +
// mutex) but replacing its hand-rolled last-request/delay bookkeeping with
// golang.org/x/time/rate's token bucket, per SPEC_FULL.md's domain-stack
// wiring.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token-bucket rate.Limiter per domain.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New creates a limiter allowing requestsPerSecond per domain, with the
// given burst (minimum 1).
func New(requestsPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
	}
}

// Wait blocks until the per-domain bucket for rawURL permits one navigation,
// or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := hostOf(rawURL)
	if domain == "" {
		return nil
	}
	return l.bucketFor(domain).Wait(ctx)
}

func (l *Limiter) bucketFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[domain]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[domain] = b
	}
	return b
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
