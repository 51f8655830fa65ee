// Package apperr provides a structured application error used throughout
// the cleanup pipeline, generalized from the teacher service's AppError to
// the error kinds in spec §7 (Authentication, Quota/RateLimit,
// Network/Timeout, RemotePermanent, InvalidInput, Conflict, CorruptState).
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds spec §7 names. Kind drives both the
// process exit code (spec §6) and whether a failure is retried locally or
// propagated.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindQuotaRateLimit Kind = "quota_rate_limit"
	KindNetworkTimeout Kind = "network_timeout"
	KindRemotePermanent Kind = "remote_permanent"
	KindInvalidInput   Kind = "invalid_input"
	KindConflict       Kind = "conflict"
	KindCorruptState   Kind = "corrupt_state"
	KindInternal       Kind = "internal"
)

// ExitCode maps a Kind to the process exit code in spec §6:
// 0 success; 1 runtime error; 2 configuration/argument error; 3 auth error.
func (k Kind) ExitCode() int {
	switch k {
	case KindAuthentication:
		return 3
	case KindInvalidInput:
		return 2
	default:
		return 1
	}
}

// AppError is a structured error carrying a Kind, a human message, and the
// wrapped cause. Retried errors (Quota/RateLimit, Network/Timeout) are
// meant to be retried by the caller before ever becoming an AppError;
// AppError represents the terminal outcome after retries are exhausted or
// for errors that are never retried.
type AppError struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail attaches a diagnostic key/value and returns the receiver for
// chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// Authentication signals credentials invalid/missing/expired beyond
// refresh — fatal, exit code 3, instructs the user to re-run `auth`.
func Authentication(message string, err error) *AppError {
	return Wrap(err, KindAuthentication, message)
}

// InvalidInput signals configuration validation failure or malformed
// local state — fatal with a clear diagnostic.
func InvalidInput(message string) *AppError {
	return New(KindInvalidInput, message)
}

// CorruptState signals decisions.json/state.json failed to parse —
// surfaced with the path and a suggestion to resume from clean state.
func CorruptState(path string, err error) *AppError {
	return Wrap(err, KindCorruptState, fmt.Sprintf(
		"%s is corrupt; delete it or restore from backup, then re-run with --resume", path))
}

// RemotePermanent signals a 4xx non-auth failure: the specific operation
// fails and is logged, the batch continues.
func RemotePermanent(operation string, err error) *AppError {
	return Wrap(err, KindRemotePermanent, fmt.Sprintf("operation failed permanently: %s", operation))
}

// Internal wraps an unexpected error.
func Internal(message string, err error) *AppError {
	return Wrap(err, KindInternal, message)
}

// As reports whether err is (or wraps) an *AppError and returns it.
func As(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

// KindOf returns the Kind of err if it is an AppError, else KindInternal.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}
