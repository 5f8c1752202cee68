// Package testing provides a conformance suite every store.IStore
// implementation runs from its own tests via RunStoreTests.
package testing
