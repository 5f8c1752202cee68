// Package engine assembles the storefront client: storage, session, response
// cache, gateway, data service, cart controller and checkout.
//
// An Engine is the process-wide context object. It is created explicitly
// with New, started with Start and torn down with Close, so several engines
// (for example one per test or per shopper) can live in one process.
package engine
