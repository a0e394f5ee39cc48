package cache

import "strings"

// CacheKey generates a cache key from components.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// LeaseKey is the processing lease key of a newspaper.
func LeaseKey(newspaperID string) string {
	return CacheKey("lease", "newspaper", newspaperID)
}

// StatsKey is the cached progress stats key of an owner.
func StatsKey(ownerID string) string {
	return CacheKey("stats", ownerID)
}

// EventsChannel is the pub/sub channel carrying a newspaper's events.
func EventsChannel(newspaperID string) string {
	return CacheKey("events", newspaperID)
}
