package ratelimiter

import "testing"

func TestAllow_AdmitsWithinBurst(t *testing.T) {
	l := NewAdaptiveRateLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("tenant-a", false) {
			t.Fatalf("request %d should be admitted within burst", i)
		}
	}
}

func TestAllow_RejectsOnceBucketExhausted(t *testing.T) {
	l := NewAdaptiveRateLimiter(0, 1)
	if !l.Allow("tenant-a", false) {
		t.Fatal("first request should be admitted")
	}
	if l.Allow("tenant-a", false) {
		t.Fatal("second request should be rejected with zero refill rate")
	}
}

func TestAllow_FailOpenAdmitsPastExhaustion(t *testing.T) {
	l := NewAdaptiveRateLimiter(0, 1).WithFailOpen(true)
	l.Allow("tenant-a", false)
	if !l.Allow("tenant-a", false) {
		t.Fatal("fail-open limiter should admit even when exhausted")
	}
}

func TestStats_ZeroValueForUnknownTenant(t *testing.T) {
	l := NewAdaptiveRateLimiter(1, 1)
	stats := l.Stats("never-seen")
	if stats != (TenantStats{}) {
		t.Fatalf("expected zero value stats, got %+v", stats)
	}
}

func TestAdapt_HighErrorRateShrinksAdaptiveFactor(t *testing.T) {
	l := NewAdaptiveRateLimiter(10, 10)
	for i := 0; i < 10; i++ {
		l.Allow("tenant-a", true)
	}
	stats := l.Stats("tenant-a")
	if stats.AdaptiveFactor >= 1.0 {
		t.Fatalf("expected adaptive factor to shrink under sustained errors, got %f", stats.AdaptiveFactor)
	}
}
