// Package ratelimiter implements the multi-tenant, adaptive token-bucket
// limiter the reference reverse proxy calls in-process before admitting a
// request to a replica. Each tenant (client) gets its own bucket; the
// refill rate adapts down when a tenant's recent requests are erroring a
// lot, and back up as its error rate recovers.
package ratelimiter

import (
	"sync"
	"time"
)

// TenantStats is a point-in-time view of one tenant's bucket, returned for
// observability.
type TenantStats struct {
	Allowed        uint64
	Rejected       uint64
	Tokens         float64
	AdaptiveFactor float64
	ErrorRate      float64
}

type bucket struct {
	tokens         float64
	lastRefill     time.Time
	allowed        uint64
	rejected       uint64
	recentRequests uint64
	recentErrors   uint64
	adaptiveFactor float64
}

// AdaptiveRateLimiter is a per-tenant token bucket limiter. rate is the
// steady-state tokens-per-second refill rate, burst is the bucket capacity.
// failOpen controls what Allow returns when a tenant's bucket is empty:
// false (the default) rejects the request, true admits it anyway. It is set
// explicitly via WithFailOpen, never inferred (see DESIGN.md).
type AdaptiveRateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64
	burst    float64
	failOpen bool
}

// NewAdaptiveRateLimiter constructs a limiter with the given steady-state
// rate (tokens/sec) and burst capacity.
func NewAdaptiveRateLimiter(rate, burst float64) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		burst:    burst,
		failOpen: false,
	}
}

// WithFailOpen sets the limiter's fail-open policy in place and returns the
// same limiter. With open=true, Allow admits requests even when the
// tenant's bucket is empty (the rejection is still counted in Stats). The
// default is fail-closed.
func (l *AdaptiveRateLimiter) WithFailOpen(open bool) *AdaptiveRateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failOpen = open
	return l
}

// Allow consumes one token for tenantID if available, reporting wasError
// for the PREVIOUS request so the adaptive factor can react. It returns
// whether the current request is admitted.
func (l *AdaptiveRateLimiter) Allow(tenantID string, wasError bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenantID]
	if !ok {
		b = &bucket{tokens: l.burst, lastRefill: time.Now(), adaptiveFactor: 1.0}
		l.buckets[tenantID] = b
	}

	l.refill(b)
	l.recordOutcome(b, wasError)
	l.adapt(b)

	effectiveRate := b.tokens
	if effectiveRate >= 1 {
		b.tokens--
		b.allowed++
		return true
	}

	b.rejected++
	return l.failOpen
}

// refill adds tokens proportional to elapsed time, scaled by the tenant's
// current adaptive factor, capped at burst.
func (l *AdaptiveRateLimiter) refill(b *bucket) {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * l.rate * b.adaptiveFactor
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
}

// recordOutcome folds the previous request's outcome into a short rolling
// window used to compute the tenant's error rate.
func (l *AdaptiveRateLimiter) recordOutcome(b *bucket, wasError bool) {
	const window = 100
	if b.recentRequests >= window {
		// Decay the window rather than keeping an unbounded counter.
		b.recentRequests /= 2
		b.recentErrors /= 2
	}
	b.recentRequests++
	if wasError {
		b.recentErrors++
	}
}

// adapt shrinks the effective refill rate for tenants with a high recent
// error rate (likely hammering a failing downstream) and restores it as
// the error rate falls, floored so a tenant is never fully starved and
// capped so a healthy tenant is never boosted above its configured rate.
func (l *AdaptiveRateLimiter) adapt(b *bucket) {
	if b.recentRequests == 0 {
		return
	}
	errRate := float64(b.recentErrors) / float64(b.recentRequests)

	switch {
	case errRate > 0.5:
		b.adaptiveFactor = 0.25
	case errRate > 0.2:
		b.adaptiveFactor = 0.5
	default:
		b.adaptiveFactor = 1.0
	}
}

// Stats returns a snapshot of tenantID's bucket. The zero value is returned
// for a tenant that has never made a request.
func (l *AdaptiveRateLimiter) Stats(tenantID string) TenantStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenantID]
	if !ok {
		return TenantStats{}
	}

	var errRate float64
	if b.recentRequests > 0 {
		errRate = float64(b.recentErrors) / float64(b.recentRequests)
	}

	return TenantStats{
		Allowed:        b.allowed,
		Rejected:       b.rejected,
		Tokens:         b.tokens,
		AdaptiveFactor: b.adaptiveFactor,
		ErrorRate:      errRate,
	}
}
