// Package cmd implements the command-line interface of dShop, a client for a
// storefront REST API. Every command builds an engine from flags and
// environment variables (DSHOP_<flag>, e.g. DSHOP_ENDPOINT), runs one
// operation against it and closes it again, which flushes pending cart
// changes and persists the snapshot.
//
// The package is organized into several subpackages:
//
//   - products: Catalog commands (list, featured, categories, get, search, recent)
//   - cart: Cart commands (show, add, update, remove, clear, total)
//   - session: Session commands (show, refresh, clear)
//   - checkout: Order creation and payment verification
//   - resync: The sync command, optionally watching in the background
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dshop -help for a list of all commands.
package cmd
