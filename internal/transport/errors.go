package transport

import (
	"errors"
	"fmt"
)

// ConfigError reports bad or missing transport configuration, or a resource
// the transport could not acquire at startup. It is fatal to that transport
// only.
type ConfigError struct {
	Transport string
	Key       string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s transport config", e.Transport)
	if e.Key != "" {
		msg += fmt.Sprintf(" %s", e.Key)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SendError reports a failure to emit one probe.
type SendError struct {
	Transport string
	ProbeID   string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *SendError) Error() string {
	msg := fmt.Sprintf("%s send of %s failed: %s", e.Transport, e.ProbeID, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *SendError) Unwrap() error {
	return e.Err
}

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// IsConfigError checks if an error is (or wraps) a config error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsSendError checks if an error is (or wraps) a send error
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}
