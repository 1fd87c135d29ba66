package common

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds for the digitization pipeline. Exactly one kind is attached
// to every failed run; callers branch on KindOf, never on message text.
const (
	KindExtraction  = "EXTRACTION_ERROR"
	KindStructuring = "STRUCTURING_ERROR"
	KindSchemaParse = "SCHEMA_PARSE_ERROR"
	KindTimeout     = "TIMEOUT_ERROR"
)

// AppError carries a stable error kind alongside a human-readable message.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Kind constructors.

func ExtractionError(message string, cause error) *AppError {
	return NewAppError(KindExtraction, message, cause)
}

func StructuringError(message string, cause error) *AppError {
	return NewAppError(KindStructuring, message, cause)
}

func SchemaParseError(message string, cause error) *AppError {
	return NewAppError(KindSchemaParse, message, cause)
}

func TimeoutError(message string, cause error) *AppError {
	return NewAppError(KindTimeout, message, cause)
}

// KindOf returns the stable kind of err, or "" when err carries none.
// A context deadline anywhere in the chain classifies as a timeout unless
// an explicit kind was already attached.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind string) bool {
	return KindOf(err) == kind
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
