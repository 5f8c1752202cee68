// Package dataservice keeps the canonical app data snapshot (catalog,
// featured products, categories, cart and session) and coordinates every read
// and write of it against the storefront API.
//
// The package focuses on:
//   - Serving reads from the local snapshot and loading it only when stale
//   - Coalescing concurrent loads into one batched fetch
//   - Optimistic cart mutations with rollback and server reconciliation
//   - Persisting the snapshot so the next run starts warm
//   - Background resynchronization driven by a timer and host visibility
//
// Key Components:
//
//   - Service: The data service. LoadAppData returns the snapshot if it is
//     fresh and complete, otherwise it runs (or joins) a single batched load
//     of catalog and cart. Reads (GetProducts, GetCategories, SearchProducts,
//     ...) go through LoadAppData first. Cart mutations update the snapshot
//     immediately, call the API, and either reconcile with the server's cart
//     or roll back.
//
//   - Mutation: Every cart mutation runs through the state machine
//     Pending -> Confirmed | RolledBack. Subscribers observe each transition
//     as an Event together with snapshot change events.
//
//   - Recent products: A bounded, persisted list of the last viewed products
//     that PeekProduct consults, so a product page can render before the
//     network answers.
//
// Consistency:
//
//	Local mutations of the snapshot are atomic with respect to each other; the
//	lock is never held across network calls. Overlapping mutations are
//	resolved by re-fetching the cart and replacing it wholesale, keeping only
//	the provisional lines of mutations that are still in flight.
//
// Thread Safety:
//
//	All methods of Service are safe for concurrent use.
package dataservice
