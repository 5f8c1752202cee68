// Package fstore implements a durable store.IStore on the local file system.
//
// Every key maps to one file inside the configured directory. The file name is
// the URL-safe base64 encoding of the key, so arbitrary keys never escape the
// directory. Writes go to a temporary file first and are renamed into place,
// which keeps the previous value intact when the process dies mid-write.
package fstore
