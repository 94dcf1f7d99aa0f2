package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed call.
type ErrorKind string

const (
	// KindTransport indicates the backend could not be reached.
	KindTransport ErrorKind = "TRANSPORT"

	// KindMalformed indicates a response body that could not be decoded.
	KindMalformed ErrorKind = "MALFORMED"

	// KindRejected indicates an application-level rejection.
	KindRejected ErrorKind = "REJECTED"
)

// Error is returned by every Client method on failure.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Op names the endpoint, e.g. "POST /order/add/batch".
	Op string

	// Status is the HTTP status, 0 for transport failures.
	Status int

	// Code is the envelope code when one was decoded.
	Code int

	// Message is the server-supplied msg for rejections.
	Message string

	// Err is the underlying cause for transport and decode failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.UserMessage())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the text to show an end user.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindTransport:
		if e.Err != nil {
			return fmt.Sprintf("cannot reach backend: %v", e.Err)
		}
		return "cannot reach backend"
	case KindMalformed:
		return "unparseable response"
	default:
		if e.Message != "" {
			return e.Message
		}
		if e.Status != 0 && (e.Status < 200 || e.Status > 299) {
			return fmt.Sprintf("request failed: %d %s", e.Status, http.StatusText(e.Status))
		}
		return fmt.Sprintf("request failed: code %d", e.Code)
	}
}

// KindOf returns the kind of an *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// IsMalformed reports whether err is an undecodable response.
func IsMalformed(err error) bool {
	return KindOf(err) == KindMalformed
}

// IsRejected reports whether err is an application-level rejection.
func IsRejected(err error) bool {
	return KindOf(err) == KindRejected
}

// IsNotFound reports whether err is a rejection with a 404 status or code.
func IsNotFound(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind != KindRejected {
		return false
	}
	return ae.Status == http.StatusNotFound || ae.Code == http.StatusNotFound
}

// UserMessage returns the user-facing text for any error.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return err.Error()
}
