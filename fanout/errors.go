package fanout

import (
	"errors"
	"fmt"
)

// ErrAuthRejected indicates a target answered the AUTH line without "OK"
var ErrAuthRejected = errors.New("authentication rejected")

// ConnectionError represents a dial, write or read failure against a target
type ConnectionError struct {
	Addr string
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %v", e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthError represents a failed AUTH handshake with a target
type AuthError struct {
	Target string
	Err    error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if errors.Is(e.Err, ErrAuthRejected) {
		return fmt.Sprintf("authentication rejected for %s", e.Target)
	}
	return fmt.Sprintf("authentication failed for %s: %v", e.Target, e.Err)
}

// Unwrap returns the wrapped error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// describe renders a per-target failure as the segment text sent to clients
func describe(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if errors.Is(authErr.Err, ErrAuthRejected) {
			return fmt.Sprintf("Authentication rejected for %s", authErr.Target)
		}
		return fmt.Sprintf("Authentication failed for %s: %v", authErr.Target, authErr.Err)
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return fmt.Sprintf("Connection error to %s: %v", connErr.Addr, connErr.Err)
	}

	return fmt.Sprintf("Connection error: %v", err)
}
