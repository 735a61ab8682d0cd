package client

import (
	"errors"
	"fmt"
)

// APIError is an error status returned by the workflow service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dagbuilder: workflow service error (status %d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized returns true if the error is a 401 Unauthorized error.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsBadRequest returns true if the error is a 400 Bad Request error.
func (e *APIError) IsBadRequest() bool {
	return e.StatusCode == 400
}

// ConnectionError means the service could not be reached.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("dagbuilder: connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err came from talking to the workflow
// service rather than from local state.
func IsServiceError(err error) bool {
	var apiErr *APIError
	var connErr *ConnectionError
	return errors.As(err, &apiErr) || errors.As(err, &connErr)
}
