package upstream

import "errors"

var (
	// ErrNotFound is returned when the upstream registry does not have
	// the requested manifest or blob.
	ErrNotFound = errors.New("upstream: not found")

	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("upstream: unauthorized")

	// ErrForbidden is returned when access is denied.
	ErrForbidden = errors.New("upstream: forbidden")

	// ErrInvalidReference is returned when a reference string is
	// malformed.
	ErrInvalidReference = errors.New("upstream: invalid reference")
)
