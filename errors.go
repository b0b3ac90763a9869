package magicdb

import (
	"errors"
	"fmt"

	"github.com/raniellyferreira/magicdb/fanout"
	"github.com/raniellyferreira/magicdb/server"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownProtocol indicates a protocol other than tcp, udp or reflect
	ErrUnknownProtocol = errors.New("unknown protocol")

	// ErrClosed indicates the server has been closed
	ErrClosed = errors.New("server is closed")

	// ErrEmptyRead indicates a client sent nothing before closing
	ErrEmptyRead = server.ErrEmptyRead

	// ErrAuthRejected indicates a reflect target refused the configured credentials
	ErrAuthRejected = fanout.ErrAuthRejected
)

// ConnectionError represents a failure to reach a reflect target
type ConnectionError = fanout.ConnectionError

// AuthError represents a failed AUTH handshake with a reflect target
type AuthError = fanout.AuthError

// ConfigError represents an invalid option value
type ConfigError struct {
	Option string
	Err    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Option, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func invalid(option, format string, args ...interface{}) error {
	return &ConfigError{
		Option: option,
		Err:    fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...),
	}
}
