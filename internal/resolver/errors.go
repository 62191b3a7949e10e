package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Upstream failure classes. The Resolver logs the class and otherwise treats
// every class the same way.
var (
	ErrTransport = errors.New("upstream transport error")
	ErrParse     = errors.New("upstream response parse error")
	ErrTimeout   = errors.New("upstream timeout")

	// ErrUnavailable is the only error Resolve returns: upstream failed and
	// there is neither a cached result nor a static fallback record.
	ErrUnavailable = errors.New("content unavailable")
)

// FetchError tags an upstream failure with its class.
type FetchError struct {
	Class error
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v: %v", e.Class, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Class, e.Err}
}

// TransportError marks err as a transport failure (connection, non-2xx status).
func TransportError(err error) error {
	return &FetchError{Class: ErrTransport, Err: err}
}

// ParseError marks err as an unexpected response body.
func ParseError(err error) error {
	return &FetchError{Class: ErrParse, Err: err}
}

// Classify maps an arbitrary upstream error onto one of ErrTransport,
// ErrParse or ErrTimeout. Unknown errors count as transport failures.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	case errors.Is(err, ErrParse):
		return ErrParse
	default:
		return ErrTransport
	}
}
