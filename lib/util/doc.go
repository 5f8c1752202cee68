// Package util provides small data structures and helpers shared by the engine.
//
// Key Components:
//
//   - MapHeap: A binary min-heap combined with a hash map, giving priority
//     ordered eviction together with O(1) membership checks by key. The data
//     service uses it to keep the bounded list of recently viewed products,
//     with a monotonically increasing sequence number as priority.
//
//   - GenerateSeed: A random 64 bit seed with a time based fallback.
package util
