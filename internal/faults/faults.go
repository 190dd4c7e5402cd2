// Package faults defines the closed set of error kinds surfaced by the
// ingestion pipeline. Components wrap their sentinel errors into a
// *faults.Error at the service boundary so callers and CLI adapters can
// classify failures without knowing which subsystem produced them.
package faults

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes an error.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindExternalRateLimited Kind = "EXTERNAL_RATE_LIMITED"
	KindExternalTransient   Kind = "EXTERNAL_TRANSIENT"
	KindExternalPermanent   Kind = "EXTERNAL_PERMANENT"
	KindStoreConsistency    Kind = "STORE_CONSISTENCY"
	KindFilesystemIO        Kind = "FILESYSTEM_IO"
	KindCancelled           Kind = "CANCELLED"
)

// ConflictSubkind refines KindConflict for the transferer's taxonomy.
type ConflictSubkind string

const (
	ConflictNone           ConflictSubkind = ""
	ConflictDuplicate      ConflictSubkind = "DUPLICATE"
	ConflictNameCollision  ConflictSubkind = "NAME_COLLISION"
	ConflictSimilarContent ConflictSubkind = "SIMILAR_CONTENT"
)

// Error is a categorized pipeline error.
type Error struct {
	Kind     Kind
	Subkind  ConflictSubkind // set only for KindConflict
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Subkind != ConflictNone && e.Cause != nil:
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Subkind, e.Message, e.Cause)
	case e.Subkind != ConflictNone:
		return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Subkind, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two faults by kind (and subkind when both set one),
// so errors.Is(err, faults.NotFound("")) works as a class check.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		if t.Subkind != ConflictNone && e.Subkind != t.Subkind {
			return false
		}
		return e.Kind == t.Kind
	}
	return false
}

// NotFound reports a missing entity or pending item.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflictf reports a pre-transfer conflict with its subkind.
func Conflictf(sub ConflictSubkind, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Subkind: sub, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports a malformed request or argument.
func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// ExternalRateLimited reports an upstream 429 after the retry budget.
func ExternalRateLimited(message string, cause error) *Error {
	return &Error{Kind: KindExternalRateLimited, Message: message, Cause: cause}
}

// ExternalTransient reports a retriable upstream failure after exhaustion.
func ExternalTransient(message string, cause error) *Error {
	return &Error{Kind: KindExternalTransient, Message: message, Cause: cause}
}

// ExternalPermanent reports a non-retriable upstream failure (bad key, 4xx).
func ExternalPermanent(message string, cause error) *Error {
	return &Error{Kind: KindExternalPermanent, Message: message, Cause: cause}
}

// StoreConsistency reports a broken store invariant; callers abort the
// current operation after logging full context.
func StoreConsistency(message string, cause error) *Error {
	return &Error{Kind: KindStoreConsistency, Message: message, Cause: cause}
}

// FilesystemIO wraps a filesystem failure.
func FilesystemIO(message string, cause error) *Error {
	return &Error{Kind: KindFilesystemIO, Message: message, Cause: cause}
}

// Cancelled wraps a context cancellation; terminal, never retried.
func Cancelled(cause error) *Error {
	return &Error{Kind: KindCancelled, Message: "operation cancelled", Cause: cause}
}

// KindOf classifies any error. Context cancellations map to
// KindCancelled even when produced outside this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return ""
}

// SubkindOf extracts the conflict subkind, if any.
func SubkindOf(err error) ConflictSubkind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Subkind
	}
	return ConflictNone
}

// IsCancelled reports whether err is terminal due to cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// IsConflict reports whether err is a transfer conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsRetryable reports whether the catalog client may retry err.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindExternalRateLimited, KindExternalTransient:
		return true
	}
	return false
}
