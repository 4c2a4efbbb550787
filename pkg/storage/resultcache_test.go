package storage

import (
	"testing"
	"time"
)

func testCache() *ResultCache {
	return &ResultCache{
		ttlShort:  time.Hour,
		ttlMedium: 24 * time.Hour,
		ttlLong:   7 * 24 * time.Hour,
	}
}

func TestTierTTLCheapResultsExpireFast(t *testing.T) {
	c := testCache()
	if got := c.tierTTL(2 * time.Second); got != c.ttlShort {
		t.Fatalf("expected short tier for a cheap result, got %s", got)
	}
}

func TestTierTTLBoundaries(t *testing.T) {
	c := testCache()
	cases := []struct {
		processing time.Duration
		want       time.Duration
	}{
		{mediumTierMinDuration - time.Millisecond, c.ttlShort},
		{mediumTierMinDuration, c.ttlMedium},
		{longTierMinDuration - time.Millisecond, c.ttlMedium},
		{longTierMinDuration, c.ttlLong},
		{time.Hour, c.ttlLong},
	}
	for _, tc := range cases {
		if got := c.tierTTL(tc.processing); got != tc.want {
			t.Fatalf("processing %s: expected ttl %s, got %s", tc.processing, tc.want, got)
		}
	}
}
