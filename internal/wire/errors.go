package wire

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed or incomplete wire payload.
type ParseError struct {
	Format  string // "xml", "json" or "yaml"
	Element string // missing or invalid element, empty when the document itself is broken
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s parse error", e.Format)
	if e.Element != "" {
		msg += fmt.Sprintf(" at %s", e.Element)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Err
}

func missing(format, element string) *ParseError {
	return &ParseError{Format: format, Element: element, Message: "required element is missing"}
}

func malformed(format string, err error) *ParseError {
	return &ParseError{Format: format, Message: "malformed document", Err: err}
}

func invalid(format, element string, err error) *ParseError {
	return &ParseError{Format: format, Element: element, Message: "invalid value", Err: err}
}

// ValidationError reports a value rejected at construction time.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnsupportedPayloadTypeError reports a payload type other than XML or JSON.
type UnsupportedPayloadTypeError struct {
	Value string
}

// Error implements the error interface
func (e *UnsupportedPayloadTypeError) Error() string {
	return fmt.Sprintf("unsupported payload type %q (expected XML or JSON)", e.Value)
}

// IsParseError checks if an error is (or wraps) a parse error
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsValidationError checks if an error is (or wraps) a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUnsupportedPayloadType checks if an error is (or wraps) an unsupported payload type error
func IsUnsupportedPayloadType(err error) bool {
	var ue *UnsupportedPayloadTypeError
	return errors.As(err, &ue)
}
