// Package apperrors defines the typed error taxonomy used at the engine's
// boundaries (detector lookup, frame/video validation, scheduler control
// operations). It carries no transport coupling: translating a Code into an
// HTTP status or a CLI exit code is a concern of whatever sits outside this
// module.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies an Error for callers that need to branch on error kind
// without string-matching messages.
type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeUnknownDetector    Code = "UNKNOWN_DETECTOR"
	CodeUnknownProfile     Code = "UNKNOWN_PROFILE"
	CodeUnknownLevel       Code = "UNKNOWN_LEVEL"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeSourceUnavailable  Code = "SOURCE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// Error is the engine's single error type. Message is safe to show a caller;
// Details carries additional context for logs.
type Error struct {
	Code      Code
	Message   string
	Details   string
	Timestamp time.Time
	cause     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(code Code, message, details string) *Error {
	return &Error{Code: code, Message: message, Details: details, Timestamp: time.Now()}
}

func InvalidInput(message, details string) *Error {
	return newErr(CodeInvalidInput, message, details)
}

func UnknownDetector(name string) *Error {
	return newErr(CodeUnknownDetector, "unknown detector name", name)
}

func UnknownProfile(name string) *Error {
	return newErr(CodeUnknownProfile, "unknown profile", name)
}

func UnknownLevel(name string) *Error {
	return newErr(CodeUnknownLevel, "unknown detection level", name)
}

func NotFound(message, details string) *Error {
	return newErr(CodeNotFound, message, details)
}

func Conflict(message, details string) *Error {
	return newErr(CodeConflict, message, details)
}

func SourceUnavailable(message string, cause error) *Error {
	e := newErr(CodeSourceUnavailable, message, "")
	if cause != nil {
		e.Details = cause.Error()
		e.cause = cause
	}
	return e
}

func Internal(message string, cause error) *Error {
	e := newErr(CodeInternal, message, "")
	if cause != nil {
		e.Details = cause.Error()
		e.cause = cause
	}
	return e
}

// Is reports whether err, or any error it wraps, is an *Error carrying
// code. It uses errors.As, so apperrors.Is(err, CodeNotFound) works
// through wrapping.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
