package responder

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// DeliveryKind classifies why a response could not be delivered.
type DeliveryKind int

const (
	// DeliveryNetwork is any network failure not classified more precisely
	DeliveryNetwork DeliveryKind = iota
	// DeliveryTimeout means the listener did not answer within the delivery timeout
	DeliveryTimeout
	// DeliveryRefused means nothing was listening at the callback address
	DeliveryRefused
	// DeliveryDNS means the callback host did not resolve
	DeliveryDNS
	// DeliveryUnreachable means no route to the callback host or network
	DeliveryUnreachable
	// DeliveryHTTPStatus means the listener answered with a non-2xx status
	DeliveryHTTPStatus
	// DeliveryEncode means the response could not be encoded
	DeliveryEncode
)

// String returns a human-readable name for the kind
func (k DeliveryKind) String() string {
	switch k {
	case DeliveryNetwork:
		return "Network Error"
	case DeliveryTimeout:
		return "Timeout"
	case DeliveryRefused:
		return "Connection Refused"
	case DeliveryDNS:
		return "DNS Error"
	case DeliveryUnreachable:
		return "Unreachable"
	case DeliveryHTTPStatus:
		return "HTTP Error"
	case DeliveryEncode:
		return "Encode Error"
	default:
		return fmt.Sprintf("DeliveryKind(%d)", int(k))
	}
}

// label is the Prometheus result label for the kind.
func (k DeliveryKind) label() string {
	switch k {
	case DeliveryTimeout:
		return "timeout"
	case DeliveryRefused:
		return "refused"
	case DeliveryDNS:
		return "dns"
	case DeliveryUnreachable:
		return "unreachable"
	case DeliveryHTTPStatus:
		return "http_status"
	case DeliveryEncode:
		return "encode"
	default:
		return "network"
	}
}

// DeliveryError is one failed POST of a response. Deliveries are never
// retried.
type DeliveryError struct {
	Kind       DeliveryKind
	URL        string
	ProbeID    string
	StatusCode int // HTTP status code (DeliveryHTTPStatus only)
	Message    string
	Err        error
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("delivery to %s: %s: %s", e.URL, e.Kind, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsDeliveryError checks if an error is (or wraps) a delivery error
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// classify turns a transport-level POST failure into a DeliveryError. The
// *url.Error returned by http.Client unwraps to the dial error.
func classify(err error, target string) *DeliveryError {
	if err == nil {
		return nil
	}

	de := &DeliveryError{Kind: DeliveryNetwork, URL: target, Message: "request failed", Err: err}

	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		de.Kind, de.Message = DeliveryTimeout, "listener did not answer in time"
		return de
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		de.Kind, de.Message = DeliveryDNS, fmt.Sprintf("cannot resolve %s", dnsErr.Name)
		return de
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			de.Kind, de.Message = DeliveryRefused, "connection refused"
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			de.Kind, de.Message = DeliveryUnreachable, "host unreachable"
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			de.Kind, de.Message = DeliveryUnreachable, "network unreachable"
		}
	}
	return de
}
