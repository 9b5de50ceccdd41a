// Package errors defines the typed errors omnisync returns. Callers check
// them with the Is helpers below or with errors.As on the concrete types;
// every type maps onto one of the sentinel values so a caller that only
// cares about the category never needs the type.
package errors

import (
	"errors"
	"net/http"
)

// Aliases so callers need a single errors import.
var (
	New  = errors.New
	Join = errors.Join
	Is   = errors.Is
	As   = errors.As
)

// Categories shared by the typed errors.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAPIKeyRequired      = errors.New("API key required")
	ErrAPIKeyInvalid       = errors.New("API key invalid")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrCanceled            = errors.New("operation canceled")
)

// statusCategory maps an HTTP status from Omni onto a category, or nil
// when the status has no category of its own (400, 422, ...).
func statusCategory(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrAlreadyExists
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAPIKeyInvalid
	case status >= http.StatusInternalServerError:
		return ErrProviderUnavailable
	}
	return nil
}

// IsAuthStatus reports whether Omni rejected the credentials.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidationError matches bad options and unparseable source files alike.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsAPIKeyError matches both a missing key and one Omni refused.
func IsAPIKeyError(err error) bool {
	return errors.Is(err, ErrAPIKeyRequired) || errors.Is(err, ErrAPIKeyInvalid)
}

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

func IsCanceled(err error) bool { return errors.Is(err, ErrCanceled) }

func IsProviderUnavailable(err error) bool { return errors.Is(err, ErrProviderUnavailable) }

// WrapIO returns nil for a nil err.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource returns nil for a nil err.
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{Operation: operation, Resource: resource, ID: id, Message: err.Error(), Err: err}
}

// WrapParse returns nil for a nil err.
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Message: err.Error(), Err: err}
}
