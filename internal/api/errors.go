package api

import (
	"errors"
	"fmt"
	"net/url"
)

// Sentinel errors for session CRUD outcomes the caller must distinguish.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// ServerError is the structured error shape some endpoints return:
// an error code, a human message and an optional remediation suggestion.
type ServerError struct {
	Status     int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// StatusError covers any non-2xx response that lacks the structured shape.
// Detail carries the server's "detail" field when present.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// IsUnreachable reports whether err is a transport-level failure: the client
// could not reach the server at all, as opposed to the server answering with
// an error. Callers use this to synthesize the "is the server running?" hint.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var se *ServerError
	var ste *StatusError
	if errors.As(err, &se) || errors.As(err, &ste) {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		return false
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
