package memory

import "errors"

// ErrorKind classifies failures so callers can tell "nothing there" apart
// from "could not determine", and a half-landed write apart from either.
type ErrorKind string

const (
	// KindNotFound reports an absent identifier where absence is not a
	// normal result (e.g. an edge endpoint that must exist).
	KindNotFound ErrorKind = "not_found"
	// KindBackendUnavailable reports an unreachable or uninitialized
	// remote store.
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	// KindValidation reports a malformed record (score out of range,
	// missing required field).
	KindValidation ErrorKind = "validation"
	// KindPartialWrite reports a dual-backend write where one side landed
	// and the other did not. It is always surfaced and never retried here.
	KindPartialWrite ErrorKind = "partial_write"
	// KindQuery reports a failed read-side adapter call.
	KindQuery ErrorKind = "query"
)

// WriteSide names which half of a dual-write an error refers to.
type WriteSide string

const (
	SideGraph  WriteSide = "graph"
	SideVector WriteSide = "vector"
	SideNone   WriteSide = ""
)

// Error is the store-neutral error type for the memory subsystem.
type Error struct {
	Kind    ErrorKind
	Message string
	// Succeeded names the side of a dual-write that landed, for
	// KindPartialWrite only; an operator/retry layer uses it to reconcile.
	Succeeded WriteSide
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a NotFound error for the given message.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewBackendUnavailableError wraps an unreachable/uninitialized backend error.
func NewBackendUnavailableError(message string, err error) *Error {
	return &Error{Kind: KindBackendUnavailable, Message: message, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewPartialWriteError wraps the failing half of a dual-write, recording
// which side succeeded.
func NewPartialWriteError(message string, succeeded WriteSide, err error) *Error {
	return &Error{Kind: KindPartialWrite, Message: message, Succeeded: succeeded, Err: err}
}

// NewQueryError wraps a failed read-side call.
func NewQueryError(message string, err error) *Error {
	return &Error{Kind: KindQuery, Message: message, Err: err}
}

func isKind(err error, kind ErrorKind) bool {
	var memErr *Error
	if errors.As(err, &memErr) {
		return memErr.Kind == kind
	}
	return false
}

// IsNotFound checks whether an error is a NotFound error.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsBackendUnavailable checks whether an error marks an unreachable backend.
func IsBackendUnavailable(err error) bool { return isKind(err, KindBackendUnavailable) }

// IsValidation checks whether an error is a validation failure.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsPartialWrite checks whether an error is a partial dual-write failure.
func IsPartialWrite(err error) bool { return isKind(err, KindPartialWrite) }

// IsQueryFailure checks whether an error is a read-side query failure.
func IsQueryFailure(err error) bool { return isKind(err, KindQuery) }

// PartialWriteSide extracts which side of a dual-write succeeded, if the
// error is a partial write failure.
func PartialWriteSide(err error) WriteSide {
	var memErr *Error
	if errors.As(err, &memErr) && memErr.Kind == KindPartialWrite {
		return memErr.Succeeded
	}
	return SideNone
}
