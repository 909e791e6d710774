package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping and logging.
type Kind string

const (
	KindConflict     Kind = "CONFLICT"
	KindNotFound     Kind = "NOT_FOUND"
	KindVerification Kind = "VERIFICATION_FAILED"
	KindProvider     Kind = "PROVIDER_ERROR"
	KindValidation   Kind = "VALIDATION_ERROR"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// Error is the application error carrying a kind, a human message and
// optional structured details surfaced in API responses.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Conflict(msg string, details map[string]any) *Error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Verification(err error) *Error {
	return &Error{Kind: KindVerification, Message: "webhook verification failed", Err: err}
}

func Provider(err error) *Error {
	return &Error{Kind: KindProvider, Message: "payment provider request failed", Err: err}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

func is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

func IsConflict(err error) bool     { return is(err, KindConflict) }
func IsNotFound(err error) bool     { return is(err, KindNotFound) }
func IsVerification(err error) bool { return is(err, KindVerification) }
func IsProvider(err error) bool     { return is(err, KindProvider) }
func IsValidation(err error) bool   { return is(err, KindValidation) }

// HTTPStatus maps err to the response status. Unknown errors map to 500.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindVerification, KindValidation, KindProvider:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
