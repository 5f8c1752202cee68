// Package session owns the anonymous session identity of the storefront
// visitor. The identity is created lazily, persisted to two storage tiers and
// reconciled on every read.
//
// Storage layout:
//
//	page store     session_id
//	durable store  session_id, session_id_backup
//
// On read the durable value wins over the page value, and the winner is
// written back to every location. If all locations are empty a new identity
// is generated. Storage failures never surface to callers: the manager logs
// them and keeps working with its in-memory value (degraded mode).
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
package session
