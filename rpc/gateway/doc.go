// Package gateway implements the HTTP gateway between the engine and the
// storefront REST API.
//
// The package focuses on:
//   - One request method for every call the engine makes, with JSON bodies
//   - A response cache for GET calls with route-dependent lifetimes
//   - Retries with exponential backoff for idempotent calls
//   - A typed error taxonomy (network, HTTP status, parse)
//   - Propagation of the session identity in both directions
//
// Key Components:
//
//   - Gateway: Performs requests. A GET first consults the response cache under
//     the key METHOD:path[:body]; on a miss the call goes to the network and a
//     successful JSON response is cached with the TTL of the first matching
//     TTLRoute. Non-GET calls always go to the network and are never cached or
//     retried.
//
//   - Error: Every failure is an *Error. KindNetwork covers transport failures
//     and timeouts, KindHTTPStatus non-2xx answers (with the server's message
//     and raw payload), KindParse undecodable bodies. Retryable reports whether
//     a GET may be repeated: network failures, 5xx, 408 and 429 are, all other
//     4xx are not.
//
//   - Fetch: Generic helper that performs a request and decodes the JSON body.
//     Undecodable GET bodies degrade to the zero value instead of failing.
//
// Sessions:
//
//	Every request carries the current session id in the Session-Id header. If
//	the server answers with a different Session-Id header, that id is adopted.
//
// Metrics:
//
//	Request counts by method and status, latency histograms, cache hits and
//	misses and retries are recorded in a VictoriaMetrics set exposed by Metrics.
//
// Thread Safety:
//
//	A Gateway is safe for concurrent use.
package gateway
