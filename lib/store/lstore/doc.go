// Package lstore implements store.IStore in memory. Values are copied on the
// way in and on the way out, so callers never share a backing array with the store.
package lstore
