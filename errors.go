package regdelta

import (
	"errors"

	"github.com/meigma/regdelta/archive"
	"github.com/meigma/regdelta/engine"
	"github.com/meigma/regdelta/gc"
	"github.com/meigma/regdelta/registry"
)

// Sentinel errors re-exported from subpackages so callers can match the
// full taxonomy with errors.Is against this package alone.
var (
	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = registry.ErrInvalidReference

	// ErrManifestNotFound is returned when a manifest does not exist.
	ErrManifestNotFound = registry.ErrManifestNotFound

	// ErrUnsupportedManifestKind is returned for manifest lists, indexes
	// and other kinds outside the two supported single-image types.
	ErrUnsupportedManifestKind = registry.ErrUnsupportedManifestKind

	// ErrProtocol is returned on unexpected statuses or malformed bodies.
	ErrProtocol = registry.ErrProtocol

	// ErrIntegrity is returned when received content does not match its
	// digest.
	ErrIntegrity = registry.ErrIntegrity

	// ErrArchiveFormat is returned when an archive is structurally invalid.
	ErrArchiveFormat = archive.ErrFormat

	// ErrBackendUnavailable is returned when an operation needs a container
	// engine or copy tool and none is usable.
	ErrBackendUnavailable = engine.ErrUnavailable

	// ErrRegistryState is returned when the registry cannot be brought back
	// to a consistent serving state.
	ErrRegistryState = gc.ErrRegistryState
)

// Sentinel errors specific to the root package.
var (
	// ErrMissingBaseImage is returned when a delta archive references
	// blobs that are neither in the archive nor at the destination. The
	// base image the delta was computed against has to be loaded first.
	ErrMissingBaseImage = errors.New("regdelta: missing base image blobs")
)
