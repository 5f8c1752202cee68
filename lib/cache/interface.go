package cache

import "time"

// ICache is a key-value cache with per-entry expiry.
type ICache[V any] interface {
	// Set stores value under key, replacing any previous entry. The entry
	// expires ttl after the current time.
	Set(key string, value V, ttl time.Duration)
	// Get returns the value for key if a live entry exists. An expired entry
	// is evicted and reported as missing.
	Get(key string) (value V, ok bool)
	// Has reports whether a live entry exists for key. It evicts like Get.
	Has(key string) bool
	// Clear removes all entries whose key contains prefix, or every entry when
	// prefix is empty. It returns the number of removed entries.
	Clear(prefix string) int
	// Len returns the number of stored entries, including expired entries
	// that have not been read since they expired.
	Len() int
}
