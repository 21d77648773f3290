package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the session engine's failure taxonomy. Services never
// retry internally; callers decide retry policy per operation.
var (
	// ErrNotReady means the transport was used before it reached Ready.
	ErrNotReady = errors.New("transport not ready")
	// ErrAborted marks explicit cancellation, a non-error terminal state.
	ErrAborted = errors.New("aborted")
)

// ConfigError is a missing required credential or precondition. Fatal to
// the operation and surfaced to the caller.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s", e.Message) }

// RemoteError is a failed remote call, categorized by operation.
type RemoteError struct {
	Op  string // "register" | "sync" | "upload" | "route" | ...
	Err error
}

func (e *RemoteError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *RemoteError) Unwrap() error { return e.Err }

// RegistrationError wraps a visitor registration failure.
func RegistrationError(err error) error { return &RemoteError{Op: "register", Err: err} }

// SyncError wraps a history sync failure.
func SyncError(err error) error { return &RemoteError{Op: "sync", Err: err} }

// UploadError wraps an attachment upload failure.
func UploadError(err error) error { return &RemoteError{Op: "upload", Err: err} }

// RouteResolutionError wraps a transport endpoint resolution failure.
func RouteResolutionError(err error) error { return &RemoteError{Op: "route", Err: err} }

// IsAbort reports whether err represents explicit cancellation rather than
// a genuine failure.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err is an abort-on-timeout; surfaced the same
// way as other remote failures.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
