package apiclient

import (
	"errors"
	"fmt"
)

// ErrUnauthorized matches every 401 response via errors.Is.
var ErrUnauthorized = errors.New("apiclient: unauthorized")

// UnauthorizedError is a 401 response. Redirected is set when the client owns
// a logout navigator, which has been triggered (at most once per session) by
// the time the caller sees the error.
type UnauthorizedError struct {
	Message    string
	Redirected bool
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return ErrUnauthorized.Error()
	}
	return ErrUnauthorized.Error() + ": " + e.Message
}

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// Redirected reports whether err is a 401 the logout redirect already handles.
func Redirected(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue) && ue.Redirected
}

// ErrNoEndpoint means no base URL is configured or every one is cooling down.
var ErrNoEndpoint = errors.New("apiclient: no endpoint available")

// BusinessError is a backend-reported failure: an envelope without a success
// marker, or a non-2xx response carrying a message.
type BusinessError struct {
	StatusCode int
	Message    string
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("apiclient: request rejected (status %d)", e.StatusCode)
	}
	return "apiclient: " + e.Message
}

// StatusError is a non-2xx response without a usable message.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// TransportError wraps network and decoding failures.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Message returns the backend-provided message carried by err, if any.
func Message(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, 0 when there is none.
func StatusCode(err error) int {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.StatusCode
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	if errors.Is(err, ErrUnauthorized) {
		return 401
	}
	return 0
}

// IsTransport reports whether err is a network or decoding failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
