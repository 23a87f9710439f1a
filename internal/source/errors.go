package source

import (
	"errors"
	"fmt"
)

// Kind categorizes an adapter failure. No kind is fatal to an aggregate
// call; the aggregator records the failure and moves on.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnreachable
	KindRateLimited
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a categorized adapter failure.
type Error struct {
	Source string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Unreachable(src string, err error) *Error {
	return &Error{Source: src, Kind: KindUnreachable, Err: err}
}

func RateLimited(src string, err error) *Error {
	return &Error{Source: src, Kind: KindRateLimited, Err: err}
}

func Malformed(src string, err error) *Error {
	return &Error{Source: src, Kind: KindMalformed, Err: err}
}

func Unknownf(src string, format string, args ...any) *Error {
	return &Error{Source: src, Kind: KindUnknown, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// ValidationError reports synchronously rejected input. It is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrEmptyKeywords is returned when keywords are empty after trimming.
var ErrEmptyKeywords = &ValidationError{Msg: "keywords must not be empty"}
