// Package domain defines the core entities and error taxonomy shared by
// every layer of ingatd.
package domain

import "errors"

// Sentinel errors for storage and service operations. Callers match these
// with errors.Is; every layer wraps rather than swallows.
var (
	// ErrLockHeld is returned when the embedded store's write lock is held
	// by another process. Fatal for the local-mode path, never retried.
	ErrLockHeld = errors.New("another process holds the database lock")

	// ErrServiceUnavailable indicates the owning service could not be
	// reached. Distinguishable from an empty result on purpose: callers
	// must be able to tell "no matches" apart from "could not ask".
	ErrServiceUnavailable = errors.New("ingatd service unavailable")

	// ErrValidation indicates a malformed request, rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrEmbedding indicates the active embedding engine failed to
	// initialize or compute a vector.
	ErrEmbedding = errors.New("embedding engine failed")

	// ErrStorage indicates an I/O or corruption failure in the record store.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownBackend indicates an embedding backend id that is not
	// registered in this build.
	ErrUnknownBackend = errors.New("unknown embedding backend")
)
