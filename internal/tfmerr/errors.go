// Package tfmerr defines the typed error taxonomy shared by every backend
// and engine in tfm. Callers switch on Kind, never on error strings.
package tfmerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of tfm's error categories.
type Kind int

const (
	// KindOther is used for errors that do not fit any other kind.
	KindOther Kind = iota
	KindNotFound
	KindPermissionDenied
	KindAlreadyExists
	KindInvalidName
	KindUnsupported
	KindIoFailure
	KindCredentialsMissing
	KindCredentialsInvalid
	KindDecodingFailure
	KindCancelled
	KindLimitExceeded
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidName:
		return "invalid_name"
	case KindUnsupported:
		return "unsupported"
	case KindIoFailure:
		return "io_failure"
	case KindCredentialsMissing:
		return "credentials_missing"
	case KindCredentialsInvalid:
		return "credentials_invalid"
	case KindDecodingFailure:
		return "decoding_failure"
	case KindCancelled:
		return "cancelled"
	case KindLimitExceeded:
		return "limit_exceeded"
	default:
		return "other"
	}
}

// Error is the concrete error type every Path operation and engine returns.
// It carries a Kind for programmatic dispatch, an Op/Path for context, and
// wraps an underlying cause (if any) via github.com/pkg/errors so logs keep
// a stack trace without callers needing to inspect it.
type Error struct {
	Kind  Kind
	Op    string // operation name, e.g. "stat", "rename"
	Path  string // URI or path the error concerns, may be empty
	cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.cause != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.cause)
		}
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap lets errors.Is/As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New creates a typed error, wrapping cause with github.com/pkg/errors so a
// stack trace is attached at the point of creation.
func New(kind Kind, op, path string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Path: path, cause: wrapped}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err. A nil err yields KindOther; any other
// error that is not a *Error yields KindIoFailure.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if err == nil {
		return KindOther
	}
	return KindIoFailure
}
