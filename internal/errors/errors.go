package errors

import (
	"errors"
	"fmt"
)

// Common error types for the analytics client pipeline
var (
	// Authorization errors
	ErrAuthRequired  = errors.New("authentication required")
	ErrAuthExpired   = errors.New("access credential expired")
	ErrRefreshFailed = errors.New("credential refresh failed")

	// Transport errors
	ErrNetworkFailure = errors.New("network failure")

	// Session errors
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRegistrationConflict = errors.New("registration conflict")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrUnexpected     = errors.New("unexpected response")
)

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

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
