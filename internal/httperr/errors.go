package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure into the error taxonomy the HTTP layer maps
// onto status codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindUpstream
	KindAnalysis
)

// Error carries a kind, a user-safe message, and the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the kind to an HTTP status per the error taxonomy.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream, KindAnalysis:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation reports bad or missing input.
func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

// Auth reports an invalid or expired credential.
func Auth(message string, cause error) *Error {
	return newError(KindAuth, message, cause)
}

// NotFound reports an unknown repository, conversation, or file.
func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

// Upstream reports GitHub or the AI agent being unreachable or erroring.
func Upstream(message string, cause error) *Error {
	return newError(KindUpstream, message, cause)
}

// Analysis reports a malformed or failed agent analysis result.
func Analysis(message string, cause error) *Error {
	return newError(KindAnalysis, message, cause)
}

// KindOf extracts the taxonomy kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsUpstream(err error) bool   { return KindOf(err) == KindUpstream }
func IsAnalysis(err error) bool   { return KindOf(err) == KindAnalysis }
