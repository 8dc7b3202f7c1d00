// Package hookerr classifies hook server failures into go-errors envelopes.
//
// Every failure surfaced to a webhook caller carries an HTTP status code and a
// stable text code. Anything that is not an envelope is treated as a handler
// fault and reported as a generic 500.
package hookerr

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to envelopes.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeForbidden       = "FORBIDDEN"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeUpstream        = "UPSTREAM_UNAVAILABLE"
	CodeConfiguration   = "CONFIGURATION"
	CodeInternal        = "INTERNAL"
)

// InternalMessage is returned for faults that carry no classification.
const InternalMessage = "Internal server error"

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// BadRequest reports malformed or missing request input.
func BadRequest(message string) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, CodeBadRequest, nil)
}

// Forbidden reports a request from an untrusted origin.
func Forbidden(message string) error {
	return newError(message, goerrors.CategoryAuthz, http.StatusForbidden, CodeForbidden, nil)
}

// PayloadTooLarge reports a body over the configured limit.
func PayloadTooLarge(message string) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, nil)
}

// Unavailable reports an upstream dependency that could not be used.
// source may be nil.
func Unavailable(message string, source error, metadata map[string]any) error {
	if source == nil {
		return newError(message, goerrors.CategoryExternal, http.StatusServiceUnavailable, CodeUpstream, metadata)
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(CodeUpstream)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// Configuration reports a setup mistake. It has no HTTP status: callers abort
// startup instead of serving.
func Configuration(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryConflict, 0, CodeConfiguration, metadata)
}

// Status maps err to the status code and message written to the caller.
func Status(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code > 0 {
		return rich.Code, rich.Message
	}
	return http.StatusInternalServerError, InternalMessage
}

// Message returns the caller-facing message of an envelope, or err.Error()
// for anything else.
func Message(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Message
	}
	return err.Error()
}

// Is reports whether err is an envelope with the given text code.
func Is(err error, textCode string) bool {
	var rich *goerrors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}
