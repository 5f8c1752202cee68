// Package testing groups test support shared by the engine packages.
//
//   - fakeapi: An in-process fake of the storefront REST API with call
//     counting, failure injection and request holding.
package testing
