package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = errors.New("registry: invalid reference")

	// ErrManifestNotFound is returned when no manifest exists for the
	// requested tag or digest.
	ErrManifestNotFound = errors.New("registry: manifest not found")

	// ErrUnsupportedManifestKind is returned when a reference resolves to a
	// manifest list or image index rather than a single-image manifest.
	ErrUnsupportedManifestKind = errors.New("registry: unsupported manifest kind")

	// ErrProtocol is returned on unexpected status codes or malformed
	// responses from the registry.
	ErrProtocol = errors.New("registry: protocol error")

	// ErrIntegrity is returned when transferred content does not match its
	// expected digest.
	ErrIntegrity = errors.New("registry: digest mismatch")
)
