// Package common provides shared utilities for fiiboard
package common

import "time"

// Freshness TTLs for cached quote data. Two tiers: intraday prices move, so
// entries written while B3 is open go stale after an hour, while settled
// after-hours data holds for a full day. Both bounds are business rules.
const (
	FreshnessTradingHours = 1 * time.Hour
	FreshnessHardCeiling  = 24 * time.Hour
)

// DefaultRetentionDays is how long daily cache entries are kept before pruning.
const DefaultRetentionDays = 7

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}

// IsFreshAt is IsFresh against an explicit reference instant, for callers
// with an injected clock.
func IsFreshAt(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
