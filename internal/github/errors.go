package github

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadCredentials = errors.New("bad credentials")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// APIError is returned when GitHub answered but the request failed: a
// non-2xx status, or a 200 whose body carries GraphQL errors.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	// QueryErrors is set when the response was 200 but listed GraphQL errors.
	QueryErrors bool
}

func (e *APIError) Error() string {
	switch {
	case e.QueryErrors:
		return fmt.Sprintf("%s: query failed: %s", e.Op, e.Message)
	case e.StatusCode == http.StatusUnauthorized:
		return fmt.Sprintf("%s: bad credentials (401): check the token", e.Op)
	case e.StatusCode == http.StatusForbidden:
		return fmt.Sprintf("%s: forbidden (403): %s", e.Op, e.Message)
	case e.StatusCode == http.StatusNotFound:
		return fmt.Sprintf("%s: not found (404): %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Message)
	}
}

// Is lets callers match on the status class with errors.Is.
func (e *APIError) Is(target error) bool {
	if e.QueryErrors {
		return false
	}
	switch target {
	case ErrBadCredentials:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// TransportError is returned when no response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
