package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the host rejects the API key
	ErrUnauthorized = errors.New("invalid API key")
	// ErrViewRejected is returned when the host answers a view with success != true
	ErrViewRejected = errors.New("view rejected by host")
)

// HostUnavailableError reports a network failure (StatusCode == 0) or an
// unexpected response status.
type HostUnavailableError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *HostUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: host unavailable: %v", e.Op, e.Err)
}

func (e *HostUnavailableError) Unwrap() error {
	return e.Err
}

// NetworkFailure reports whether the request never got a response
func (e *HostUnavailableError) NetworkFailure() bool {
	return e.StatusCode == 0
}

// ParseError reports a response body that could not be decoded
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
