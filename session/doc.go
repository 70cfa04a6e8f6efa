// Package session houses concrete implementations of core.StateStore. The
// interface itself lives in core so that the runner depends only on the
// contract; the wiring layer decides which implementation to instantiate.
package session
