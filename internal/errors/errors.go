package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the library admin client
var (
	// Session errors
	ErrAuthRequired       = errors.New("authentication required")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidTransition  = errors.New("invalid session transition")

	// Transport errors
	ErrTransientNetwork = errors.New("transient network error")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
)

// APIError is a non-2xx response from the backend. The backend reports failures as
// {"message": "..."} bodies.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// IsAuthFailure reports whether the status is one the client treats as a stale credential.
func (e *APIError) IsAuthFailure() bool {
	return IsAuthStatus(e.Status)
}

// Unwrap lets 5xx responses match ErrTransientNetwork and 404s match ErrNotFound.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status >= http.StatusInternalServerError:
		return ErrTransientNetwork
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// IsAuthStatus reports whether status is 401 or 403.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Message returns the backend-provided message when err carries an APIError, otherwise
// err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
