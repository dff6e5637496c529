package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNoToken indicates that no bearer token is available -- the user has not
// logged in on this device, or the stored token was cleared.
var ErrNoToken = errors.New("no auth token available")

// ErrorKind buckets a request failure by its transport or status
// characteristics. The client classifies; it never retries or recovers.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindNetwork
	ErrorKindTimeout
	ErrorKindUnauthorized
	ErrorKindNotFound
	ErrorKindServer
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNetwork:
		return "network_error"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindUnauthorized:
		return "unauthorized"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindServer:
		return "server_error"
	default:
		return "unknown"
	}
}

// APIError is returned for any non-2xx response or transport failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int // zero when the request never reached the server
	Op         string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: got %s status %d", e.Op, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an APIError for a 404 response. The
// mark-unread endpoint may not exist server-side, so callers branch on this.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == ErrorKindNotFound
}

func newStatusError(op string, statusCode int) *APIError {
	kind := ErrorKindUnknown
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = ErrorKindUnauthorized
	case statusCode == http.StatusNotFound:
		kind = ErrorKindNotFound
	case statusCode >= 500:
		kind = ErrorKindServer
	}

	return &APIError{
		Kind:       kind,
		StatusCode: statusCode,
		Op:         op,
	}
}

func newTransportError(op string, err error) *APIError {
	kind := ErrorKindNetwork

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrorKindTimeout
	}

	return &APIError{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}
