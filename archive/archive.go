package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/regdelta/layout"
	"github.com/meigma/regdelta/registry"
)

// maxManifestBytes caps manifest documents loaded into memory. Matches
// the registry's own manifest size limit.
const maxManifestBytes = 4 << 20

// Archive is an opened, validated delta archive. Blob content lives in a
// temporary extraction directory until Close.
type Archive struct {
	ref      registry.Reference
	version  string
	manifest *registry.Manifest
	dir      string
	sizes    map[digest.Digest]int64
}

// Reference returns the target image reference the archive restores.
func (a *Archive) Reference() registry.Reference {
	return a.ref
}

// Version returns the VERSION marker content, the target tag.
func (a *Archive) Version() string {
	return a.version
}

// Manifest returns the target manifest.
func (a *Archive) Manifest() *registry.Manifest {
	return a.manifest
}

// Blobs returns the delta blob digests in sorted order. The manifest
// document's own blob is not included.
func (a *Archive) Blobs() []digest.Digest {
	out := make([]digest.Digest, 0, len(a.sizes))
	for dgst := range a.sizes {
		out = append(out, dgst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BlobSize returns the size of a delta blob.
func (a *Archive) BlobSize(dgst digest.Digest) (int64, bool) {
	size, ok := a.sizes[dgst]
	return size, ok
}

// OpenBlob opens a delta blob's verified content for reading.
func (a *Archive) OpenBlob(dgst digest.Digest) (io.ReadCloser, int64, error) {
	size, ok := a.sizes[dgst]
	if !ok {
		return nil, 0, fmt.Errorf("%w: no blob %s", ErrFormat, dgst)
	}
	f, err := os.Open(filepath.Join(a.dir, filepath.FromSlash(layout.BlobDataPath(dgst))))
	if err != nil {
		return nil, 0, err
	}
	return f, size, nil
}

// Close removes the extraction directory.
func (a *Archive) Close() error {
	if a.dir == "" {
		return nil
	}
	dir := a.dir
	a.dir = ""
	return os.RemoveAll(dir)
}
