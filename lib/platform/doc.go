// Package platform defines the host capabilities the engine depends on
// instead of reaching for ambient globals: a wall clock and a visibility
// signal that reports whether the embedding UI is currently shown to the user.
//
// The package focuses on:
//   - Injectable time so freshness and expiry decisions are testable
//   - A push-based visibility signal used to drive opportunistic resyncs
//
// Key Components:
//
//   - Clock: Source of the current time. SystemClock is the production
//     implementation, ManualClock a settable implementation for tests and tools.
//
//   - Visibility: Reports the current visibility state and publishes
//     transitions on a channel. AlwaysVisible suits headless hosts such as the
//     CLI, VisibilitySwitch lets the host (or a test) flip the state explicitly.
//
// Thread Safety:
//
//	All implementations in this package are safe for concurrent use.
package platform
