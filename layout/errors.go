package layout

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrDigestMismatch is returned when written content does not hash to
	// the digest it was stored under.
	ErrDigestMismatch = errors.New("layout: digest mismatch")

	// ErrNotDirectory is returned when the storage root is missing or not
	// a directory.
	ErrNotDirectory = errors.New("layout: storage root is not a directory")
)
