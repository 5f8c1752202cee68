// Package rpc groups the remote-call side of the engine.
//
// Subpackages:
//
//   - common: Configuration and logging shared with the rest of the module
//   - gateway: The HTTP gateway to the storefront REST API, with response
//     caching, retries, error classification and session header propagation
package rpc
