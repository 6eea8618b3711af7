package registry

import (
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Manifest media types understood by the client.
const (
	// MediaTypeDockerManifest is the Docker image manifest schema 2 type.
	MediaTypeDockerManifest = "application/vnd.docker.distribution.manifest.v2+json"

	// MediaTypeDockerManifestList is the Docker multi-platform list type.
	// Listed here only to be rejected explicitly.
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

// manifestAccept is the Accept header offered on manifest requests. Only
// single-image kinds are listed so registries never hand us an index.
var manifestAccept = strings.Join([]string{
	MediaTypeDockerManifest,
	ocispec.MediaTypeImageManifest,
}, ", ")

// supportedManifest reports whether mediaType is a single-image manifest
// kind the client can process.
func supportedManifest(mediaType string) bool {
	switch mediaType {
	case MediaTypeDockerManifest, ocispec.MediaTypeImageManifest:
		return true
	}
	return false
}

// indexManifest reports whether mediaType denotes a multi-image list or
// index.
func indexManifest(mediaType string) bool {
	switch mediaType {
	case MediaTypeDockerManifestList, ocispec.MediaTypeImageIndex:
		return true
	}
	return false
}
