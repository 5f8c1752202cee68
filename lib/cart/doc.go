// Package cart provides the UI-facing cart controller on top of the data
// service.
//
// The package focuses on:
//   - Variant-aware matching of cart lines (product plus selected options)
//   - Clamping requested quantities to the known stock with a user notice
//   - Debouncing rapid quantity changes per line so only the final value is sent
//   - Derived reads such as the cart total and the item count
//
// Key Components:
//
//   - Controller: Wraps the cart operations of a DataService. Quantity
//     changes are visible through Items immediately and sent once the line
//     has been quiet for the debounce window (500 ms by default). Flush sends
//     everything that is still pending, Close flushes and stops the
//     controller.
//
//   - Notifier: Receives the toast-style notices the controller raises
//     (stock adjustments, failed mutations). The default notifier logs them.
//
// Thread Safety:
//
//	All methods of Controller are safe for concurrent use.
package cart
