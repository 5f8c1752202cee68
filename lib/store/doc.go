// Package store provides the storage adapter abstraction the engine persists
// its state through, together with unified error handling.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value persistence across different backends
//   - A structured error type so callers can tell unavailable storage from misuse
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for persisting
//     raw bytes under string keys. The session manager and the data service only
//     see this interface, so the backing medium can be swapped without code changes.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. Callers treat any store error as a signal to
//     continue in memory (degraded mode) rather than to fail.
//
// Implementations:
//
//	The package includes three implementations of the IStore interface:
//
//	- Local Store (lstore): An in-memory store backed by a concurrent map. Its
//	  contents live as long as the process, which makes it the page-lifetime
//	  store of the session manager and the default in tests.
//	  Available in the "github.com/ValentinKolb/dShop/lib/store/lstore" package.
//
//	- File Store (fstore): A durable store writing one file per key into a
//	  directory. Writes are atomic (temp file plus rename).
//	  Available in the "github.com/ValentinKolb/dShop/lib/store/fstore" package.
//
//	- Redis Store (rstore): A durable store on top of a Redis server, suited
//	  for sharing state between several engine processes.
//	  Available in the "github.com/ValentinKolb/dShop/lib/store/rstore" package.
//
// The shared conformance suite lives in "github.com/ValentinKolb/dShop/lib/store/testing".
package store
