package model

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	// KindConfig covers invalid configuration: non-positive block size or
	// fragment count, missing seed, missing manifest source.
	KindConfig Kind = "Config"
	// KindCountMismatch is raised when the number of fragments differs from
	// the number of images recorded in the manifest.
	KindCountMismatch Kind = "CountMismatch"
	// KindDuplicateName is raised when preserved original names collide.
	KindDuplicateName Kind = "DuplicateName"
	// KindCodec wraps image decode/encode failures.
	KindCodec Kind = "Codec"
	// KindUnsupportedSource is raised for inputs that are none of the
	// recognized image source kinds.
	KindUnsupportedSource Kind = "UnsupportedSource"
	// KindManifest covers malformed or incompatible manifests.
	KindManifest Kind = "Manifest"
	// KindIntegrity covers strict-mode violations: short fragments,
	// fragment CID mismatches.
	KindIntegrity Kind = "Integrity"
)

// Error is the library's structured error type.
//
// Op names the operation that failed (e.g. "decode fragment 3"). Message is
// intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError returns a structured error without a cause.
func NewError(kind Kind, op, message string) error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Errorf is NewError with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches kind and operation context to cause.
func WrapError(kind Kind, op, message string, cause error) error {
	if cause == nil {
		return NewError(kind, op, message)
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
