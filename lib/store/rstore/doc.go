// Package rstore implements a durable store.IStore on top of Redis using
// go-redis. All keys are namespaced with a configurable prefix so several
// engines (or other applications) can share one Redis database.
package rstore
