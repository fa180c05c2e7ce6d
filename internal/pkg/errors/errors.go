package errors

import "errors"

// Shared application errors. Repositories and services wrap these with fmt.Errorf("%w: ...")
// so handlers can map them with errors.Is.
var (
	// ErrNotFound is returned when a record does not exist or is not visible to the caller.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized means the request carries no valid session.
	ErrUnauthorized = errors.New("unauthorized")

	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	ErrConflict = errors.New("resource state conflict")
)
