// Package agent provides the read-only agent registry consumed by the
// delegation controller and the turn scheduler, plus instruction rendering.
//
// Design principles:
//   - Constructed once: descriptors are validated and frozen by NewRegistry
//   - No global state: the registry is passed explicitly to its consumers
//   - Concurrent reads: lookups never lock because nothing mutates the registry
package agent
