// Package apperror classifies failures crossing the service boundary so
// transports can map them without inspecting messages.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization_error"
	KindInUse         Kind = "in_use"
	KindConflict      Kind = "conflict"
	KindExtraction    Kind = "extraction_failure"
	KindRateLimited   Kind = "rate_limited"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	// Count is the number of dependents blocking an in-use operation.
	Count int64
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so sentinel values compare equal to per-call copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func Validation(code, field, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Authorization(code, message string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func InUse(code string, count int64, message string) *Error {
	return &Error{Kind: KindInUse, Code: code, Count: count, Message: message}
}

func RateLimited(code, message string) *Error {
	return &Error{Kind: KindRateLimited, Code: code, Message: message}
}

// Extraction carries the message shown verbatim to the end user.
func Extraction(userMessage string, cause error) *Error {
	return &Error{Kind: KindExtraction, Code: "extraction_failed", Message: userMessage, Cause: cause}
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
