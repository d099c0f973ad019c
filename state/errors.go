package state

import "errors"

// Sentinel errors for the versioned-state / reader boundary (§7 "State").
var (
	// ErrUndeclaredClassHash is returned when a compiled class is requested
	// for a class hash that was never declared.
	ErrUndeclaredClassHash = errors.New("state: undeclared class hash")
	// ErrUnavailable is returned when the underlying reader cannot serve a
	// value right now (e.g. a transient storage backend failure).
	ErrUnavailable = errors.New("state: underlying reader unavailable")
	// ErrInternal wraps unexpected internal failures.
	ErrInternal = errors.New("state: internal error")
	// ErrMissingSortedLeafIndices reports a commit attempted without first
	// resolving the modified leaf index set against storage. No function in
	// this module returns it.
	ErrMissingSortedLeafIndices = errors.New("state: missing sorted leaf indices")
)
