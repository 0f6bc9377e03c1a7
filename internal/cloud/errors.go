package cloud

import (
	"errors"
	"fmt"
)

// Ingestion failures. Messages are shown to the user as-is.
var (
	ErrAuthenticationFailed = errors.New("Authentication failed. Please check your API key.")
	ErrAccessDenied         = errors.New("Access denied. Your API key may not have permission for this action.")
)

// ServerError is any other non-2xx response.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Server error (%d): %s", e.Status, e.Body)
}

// ConnectionFailedError means the server could not be reached at all: the
// host did not resolve or refused the connection.
type ConnectionFailedError struct {
	Target string
	Err    error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("Could not connect to cloud server at %s", e.Target)
}

func (e *ConnectionFailedError) Unwrap() error { return e.Err }

// NetworkError covers every other transport failure.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	return "Network error: " + e.Message
}

func (e *NetworkError) Unwrap() error { return e.Err }
