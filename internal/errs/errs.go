// Package errs defines the typed error kinds every storage-stack component
// reports through, per the engine's error handling design: storage-layer
// failures bubble to the caller unchanged and are never silently retried.
package errs

import "github.com/pkg/errors"

// Kind is one of the fixed error categories the engine can report.
type Kind string

const (
	DiskIoError      Kind = "DiskIoError"
	WalCorruption    Kind = "WalCorruption"
	BufferExhausted  Kind = "BufferExhausted"
	SchemaMismatch   Kind = "SchemaMismatch"
	UnknownTable     Kind = "UnknownTable"
	UnknownColumn    Kind = "UnknownColumn"
	DuplicateTable   Kind = "DuplicateTable"
	LockTimeout      Kind = "LockTimeout"
	TxnNotActive     Kind = "TxnNotActive"
	RecoveryFailure  Kind = "RecoveryFailure"
)

// Error pairs a Kind with a descriptive message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (k Kind) String() string { return string(k) }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around an underlying cause,
// preserving the cause's stack via github.com/pkg/errors when it has none.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, Cause: errors.WithStack(cause)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
