// Package apperr defines the error taxonomy shared across the document
// Q&A service's components, and the status codes the HTTP edge maps them
// to.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets. The HTTP edge
// dispatches on Kind, not on a specific error value, so component code can
// wrap errors with context without breaking classification.
type Kind int

const (
	// KindValidation is a bad request shape, disallowed type, oversize
	// file, or empty query. Surfaced 4xx; never logged at error level.
	KindValidation Kind = iota
	// KindDuplicate is an upload hash hit. Surfaced 200/201 with the
	// existing identifier; not an error for the client.
	KindDuplicate
	// KindNotFound is a missing identifier. 404.
	KindNotFound
	// KindInvalidTransition is an illegal status transition. Internal;
	// never surfaced raw.
	KindInvalidTransition
	// KindProvider is an embedding or completion provider failure
	// (timeout, rate-limit, 5xx).
	KindProvider
	// KindStore is a persistence failure. 500.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindProvider:
		return "provider"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a typed failure carrying its taxonomy Kind plus an optional
// wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docqa: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("docqa: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// do errors.Is(err, apperr.Validation("")) style checks, or more usefully,
// callers should use Of(err, kind) below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs a typed Error of the given Kind.
func New(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

// Wrap constructs a typed Error of the given Kind wrapping cause.
func Wrap(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Msg: msg, Err: cause}
}

// Validation constructs a KindValidation error.
func Validation(msg string) *Error { return New(KindValidation, msg) }

// Duplicate constructs a KindDuplicate error carrying the identifier of the
// pre-existing record the caller should use instead.
func Duplicate(existingID string) *Error {
	return &Error{Kind: KindDuplicate, Msg: "duplicate content", Err: &duplicateDetail{ExistingID: existingID}}
}

// DuplicateID extracts the pre-existing identifier from a Duplicate error,
// if err is one.
func DuplicateID(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindDuplicate {
		return "", false
	}
	var d *duplicateDetail
	if errors.As(e.Err, &d) {
		return d.ExistingID, true
	}
	return "", false
}

type duplicateDetail struct{ ExistingID string }

func (d *duplicateDetail) Error() string { return "existing_id=" + d.ExistingID }

// NotFound constructs a KindNotFound error.
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// InvalidTransition constructs a KindInvalidTransition error.
func InvalidTransition(msg string) *Error { return New(KindInvalidTransition, msg) }

// Provider constructs a KindProvider error wrapping cause.
func Provider(msg string, cause error) *Error { return Wrap(KindProvider, msg, cause) }

// Store constructs a KindStore error wrapping cause.
func Store(msg string, cause error) *Error { return Wrap(KindStore, msg, cause) }

// KindOf returns the Kind of err if it is (or wraps) an *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Of reports whether err is (or wraps) an *Error of kind k.
func Of(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
