// Package common provides the configuration and logging shared by the engine
// packages, the gateway and the command-line interface.
//
// The package focuses on:
//   - Configuration structures for the engine and its remote API access
//   - Custom logging implementation integrated with Dragonboat's logger facade
//
// Key Components:
//
//   - ClientConfig: Configuration of the engine, covering the remote endpoint,
//     timeouts and retries, response cache lifetimes, background sync interval,
//     cart debounce window, storage backend and log level. DefaultClientConfig
//     returns sensible defaults and Validate rejects unusable values.
//
//   - Logger: Custom logging implementation that plugs into the dragonboat
//     logger facade (logger.GetLogger) while providing consistent formatting
//     across the application. InitLoggers installs it for all engine packages.
package common
