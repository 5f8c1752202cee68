// Package cache provides a generic, in-memory key-value cache where every
// entry carries its own time-to-live.
//
// The package focuses on:
//   - Per-entry expiry relative to the moment an entry was stored
//   - Lazy, read-triggered eviction without background sweeping
//   - Bulk invalidation of related keys by substring match
//
// Key Components:
//
//   - ICache: The interface consumed by the HTTP gateway and the data service.
//
//   - TTLCache: The implementation. Entries live in a sharded concurrent map
//     (xsync.MapOf); expiry is decided against an injected platform.Clock so
//     tests can move time explicitly.
//
// Semantics:
//
//	An entry is live iff now - storedAt <= ttl. A read that finds an expired
//	entry treats it as a miss and evicts it atomically. Clear with an empty
//	prefix drops everything, otherwise every key that contains the prefix.
//
// Thread Safety:
//
//	All operations are safe for concurrent use. Reads and evictions of a single
//	key are atomic with respect to each other.
package cache
