package layout

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Root is the registry storage tree prefix. Everything the registry
// persists lives below it.
const Root = "docker/registry/v2"

// VersionMarker is the name of the archive's top-level version file.
const VersionMarker = "VERSION"

// BlobDataPath returns the path of a blob's content file:
//
//	docker/registry/v2/blobs/sha256/ab/abcdef.../data
//
// The two-character fan-out directory keeps directory sizes bounded.
func BlobDataPath(dgst digest.Digest) string {
	algo := dgst.Algorithm().String()
	hex := dgst.Encoded()
	return fmt.Sprintf("%s/blobs/%s/%s/%s/data", Root, algo, hex[:2], hex)
}

// LayerLinkPath returns the path of a repository's layer link file. The
// link marks the blob as referenced by the repository.
func LayerLinkPath(repo string, dgst digest.Digest) string {
	return fmt.Sprintf("%s/repositories/%s/_layers/%s/%s/link", Root, repo, dgst.Algorithm(), dgst.Encoded())
}

// ManifestRevisionLinkPath returns the path of a repository's manifest
// revision link. Every manifest ever stored for the repository has one.
func ManifestRevisionLinkPath(repo string, dgst digest.Digest) string {
	return fmt.Sprintf("%s/repositories/%s/_manifests/revisions/%s/%s/link", Root, repo, dgst.Algorithm(), dgst.Encoded())
}

// TagCurrentLinkPath returns the path of the link naming a tag's current
// manifest digest.
func TagCurrentLinkPath(repo, tag string) string {
	return fmt.Sprintf("%s/repositories/%s/_manifests/tags/%s/current/link", Root, repo, tag)
}

// TagIndexLinkPath returns the path of a tag's index entry for a digest.
// The index records every manifest the tag has ever pointed at.
func TagIndexLinkPath(repo, tag string, dgst digest.Digest) string {
	return fmt.Sprintf("%s/repositories/%s/_manifests/tags/%s/index/%s/%s/link", Root, repo, tag, dgst.Algorithm(), dgst.Encoded())
}

// ParseBlobDataPath extracts the digest from a blob content path. It
// accepts exactly the form produced by [BlobDataPath].
func ParseBlobDataPath(path string) (digest.Digest, bool) {
	rest, ok := strings.CutPrefix(path, Root+"/blobs/")
	if !ok {
		return "", false
	}
	// <algo>/<fanout>/<hex>/data
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[3] != "data" {
		return "", false
	}
	algo, fanout, hex := parts[0], parts[1], parts[2]
	if len(hex) < 2 || hex[:2] != fanout {
		return "", false
	}
	dgst := digest.NewDigestFromEncoded(digest.Algorithm(algo), hex)
	if err := dgst.Validate(); err != nil {
		return "", false
	}
	return dgst, true
}

// ParseRepositoryPath extracts the repository name and the path below it
// from a path under repositories/. The repository name in this layout is
// always a single path component.
func ParseRepositoryPath(path string) (repo, rest string, ok bool) {
	tail, ok := strings.CutPrefix(path, Root+"/repositories/")
	if !ok {
		return "", "", false
	}
	repo, rest, ok = strings.Cut(tail, "/")
	if !ok || repo == "" {
		return "", "", false
	}
	return repo, rest, true
}

// ParseTagCurrentPath extracts the tag name from a tag current-link path
// below a repository, as returned by [ParseRepositoryPath].
func ParseTagCurrentPath(rest string) (tag string, ok bool) {
	tail, ok := strings.CutPrefix(rest, "_manifests/tags/")
	if !ok {
		return "", false
	}
	tag, link, ok := strings.Cut(tail, "/")
	if !ok || tag == "" || link != "current/link" {
		return "", false
	}
	return tag, true
}
