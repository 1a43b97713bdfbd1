// Package common defines shared constants and sentinel errors used across
// client and server layers of CallShield. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrValidation marks malformed input (e.g. a phone number that is not
	// 7..15 digits). It is returned before any state is mutated.
	ErrValidation = errors.New("validation error")

	// ErrStorage wraps failures of the local or server-side persistence layer.
	ErrStorage = errors.New("storage error")

	// Sync pathway errors. All of them end up in the same bounded retry path.
	ErrNetwork     = errors.New("network error")
	ErrCompression = errors.New("compression error")
	ErrServer      = errors.New("server error")

	// ErrOffline is returned by operations that need the remote side while
	// the device is known to be offline.
	ErrOffline = errors.New("offline")
)
