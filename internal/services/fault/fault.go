// Package fault defines the failure kinds shared by the provider clients.
// Clients wrap their errors with one of these so callers can branch with
// errors.Is without knowing the transport.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport means the network was unreachable or the request failed
	ErrTransport = errors.New("transport fault")
	// ErrParse means the provider answered with a malformed response
	ErrParse = errors.New("parse fault")
	// ErrAuth means credentials are missing or were rejected
	ErrAuth = errors.New("auth fault")
	// ErrEmptyPayload means the provider answered without the expected data
	ErrEmptyPayload = errors.New("empty payload")
)

// FromStatus classifies a non-2xx HTTP status
func FromStatus(status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrAuth, status, body)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrTransport, status, body)
	}
}

// Kind returns a short label for metrics and logs
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrEmptyPayload):
		return "empty"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
