// Package apperr defines the error taxonomy shared by the get-log-api
// Lambdas. Each error carries a Kind; transport status codes are derived
// from the Kind only at the Lambda boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by its origin.
type Kind string

const (
	KindValidation      Kind = "validation"       // malformed request text or dates
	KindCredential      Kind = "credential"       // secret lookup or parse failure
	KindUnsupportedAuth Kind = "unsupported_auth" // no usable auth material
	KindTransfer        Kind = "transfer"         // SSH/SFTP retries exhausted
	KindArchive         Kind = "archive"          // zip write or encryption failure
	KindPublish         Kind = "publish"          // upload failure
	KindNotify          Kind = "notify"           // Teams/SES delivery failure
	KindConfig          Kind = "config"           // missing env or SSM configuration
	KindInternal        Kind = "internal"
)

// Error is a tagged error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping err. A nil err yields nil.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusCode maps a Kind to the status reported in the Lambda result.
// This is the only place error kinds meet transport codes.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotify:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
