// Package model defines the storefront data shapes exchanged with the remote
// API and kept in the engine's local snapshot.
//
// Key Components:
//
//   - ProductSnapshot: A product as last seen from the server. Always possibly
//     stale and replaced wholesale, never mutated in place.
//
//   - CartLineItem: One line in the session's cart, identified by a LineID.
//
//   - LineID: A tagged identifier that is either Provisional (created locally
//     while the server call is in flight) or Confirmed (assigned by the server).
//
//   - Variant: The free-form option map of a line (e.g. selected weight). Two
//     variants are equal iff their canonical JSON encodings are equal; an empty
//     variant equals an absent one.
//
//   - Snapshot: The aggregate app data (catalog, featured products, cart,
//     categories, session, last sync time) the data service serves reads from
//     and persists between runs.
//
//   - Amount: A price that decodes from JSON numbers and numeric strings.
package model
