package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/regdelta/layout"
	"github.com/meigma/regdelta/registry"
)

// maxLinkBytes caps metadata entries read into memory.
const maxLinkBytes = 1024

// Open reads and validates a delta archive.
//
// Validation covers structure (version marker, exactly one repository and
// tag, consistent link files), blob integrity (every data entry must hash
// to its path digest), and shape (the tag's manifest must be present and
// every delta blob referenced by it). Blob content is extracted to a
// temporary directory; Close releases it.
func Open(archivePath string) (_ *Archive, err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: not gzip compressed: %v", ErrFormat, archivePath, err)
	}
	defer gz.Close()

	dir, err := os.MkdirTemp("", "regdelta-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	st := newReadState(dir)
	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return nil, fmt.Errorf("%w: reading tar: %v", ErrFormat, nextErr)
		}
		if err := st.consume(hdr, tr); err != nil {
			return nil, err
		}
	}

	return st.finish()
}

// readState accumulates entries while scanning the tar stream.
type readState struct {
	dir string

	version    string
	repo       string
	tags       map[string]bool
	current    digest.Digest
	revisions  map[digest.Digest]bool
	indexed    map[digest.Digest]bool
	layerLinks map[digest.Digest]bool
	sizes      map[digest.Digest]int64
}

func newReadState(dir string) *readState {
	return &readState{
		dir:        dir,
		tags:       make(map[string]bool),
		revisions:  make(map[digest.Digest]bool),
		indexed:    make(map[digest.Digest]bool),
		layerLinks: make(map[digest.Digest]bool),
		sizes:      make(map[digest.Digest]int64),
	}
}

func (st *readState) consume(hdr *tar.Header, r io.Reader) error {
	switch hdr.Typeflag {
	case tar.TypeReg:
	case tar.TypeDir:
		return nil
	default:
		return fmt.Errorf("%w: entry %q: unsupported type %q", ErrFormat, hdr.Name, hdr.Typeflag)
	}

	name := path.Clean(hdr.Name)
	if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
		return fmt.Errorf("%w: entry %q escapes the archive root", ErrFormat, hdr.Name)
	}

	if name == layout.VersionMarker {
		if st.version != "" {
			return fmt.Errorf("%w: duplicate VERSION marker", ErrFormat)
		}
		data, err := readCapped(r)
		if err != nil {
			return err
		}
		st.version = strings.TrimSpace(string(data))
		return nil
	}

	if dgst, ok := layout.ParseBlobDataPath(name); ok {
		return st.extractBlob(name, dgst, r)
	}

	if repo, rest, ok := layout.ParseRepositoryPath(name); ok {
		return st.consumeLink(name, repo, rest, r)
	}

	return fmt.Errorf("%w: unexpected entry %q", ErrFormat, name)
}

// extractBlob streams a data entry to the extraction directory, verifying
// the content against the digest embedded in its path.
func (st *readState) extractBlob(name string, dgst digest.Digest, r io.Reader) error {
	if _, dup := st.sizes[dgst]; dup {
		return fmt.Errorf("%w: duplicate blob %s", ErrFormat, dgst)
	}

	target := filepath.Join(st.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}

	verifier := dgst.Verifier()
	n, err := io.Copy(io.MultiWriter(f, verifier), r)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: extract blob %s: %v", ErrFormat, dgst, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: blob %s: content does not match path digest", ErrFormat, dgst)
	}

	st.sizes[dgst] = n
	return nil
}

func (st *readState) consumeLink(name, repo, rest string, r io.Reader) error {
	if st.repo == "" {
		st.repo = repo
	} else if st.repo != repo {
		return fmt.Errorf("%w: multiple repositories (%q, %q)", ErrFormat, st.repo, repo)
	}

	data, err := readCapped(r)
	if err != nil {
		return err
	}
	dgst, err := digest.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("%w: link %s: bad digest content: %v", ErrFormat, name, err)
	}

	if tag, ok := layout.ParseTagCurrentPath(rest); ok {
		if st.current != "" {
			return fmt.Errorf("%w: multiple tag current links", ErrFormat)
		}
		st.tags[tag] = true
		st.current = dgst
		return nil
	}

	switch {
	case strings.HasPrefix(rest, "_manifests/revisions/"):
		if name != layout.ManifestRevisionLinkPath(repo, dgst) {
			return fmt.Errorf("%w: link %s disagrees with its content %s", ErrFormat, name, dgst)
		}
		st.revisions[dgst] = true
		return nil

	case strings.HasPrefix(rest, "_manifests/tags/"):
		tail := strings.TrimPrefix(rest, "_manifests/tags/")
		tag, _, ok := strings.Cut(tail, "/")
		if !ok || tag == "" {
			return fmt.Errorf("%w: unexpected entry %q", ErrFormat, name)
		}
		if name != layout.TagIndexLinkPath(repo, tag, dgst) {
			return fmt.Errorf("%w: link %s disagrees with its content %s", ErrFormat, name, dgst)
		}
		st.tags[tag] = true
		st.indexed[dgst] = true
		return nil

	case strings.HasPrefix(rest, "_layers/"):
		if name != layout.LayerLinkPath(repo, dgst) {
			return fmt.Errorf("%w: link %s disagrees with its content %s", ErrFormat, name, dgst)
		}
		st.layerLinks[dgst] = true
		return nil
	}

	return fmt.Errorf("%w: unexpected entry %q", ErrFormat, name)
}

func (st *readState) finish() (*Archive, error) {
	if st.version == "" {
		return nil, fmt.Errorf("%w: missing VERSION marker", ErrFormat)
	}
	if st.repo == "" {
		return nil, fmt.Errorf("%w: no repository tree", ErrFormat)
	}
	if len(st.tags) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one tag, found %d", ErrFormat, len(st.tags))
	}
	var tag string
	for t := range st.tags {
		tag = t
	}
	if st.current == "" {
		return nil, fmt.Errorf("%w: missing tag current link", ErrFormat)
	}
	if st.version != tag {
		return nil, fmt.Errorf("%w: VERSION %q disagrees with tag %q", ErrFormat, st.version, tag)
	}
	if !st.revisions[st.current] {
		return nil, fmt.Errorf("%w: missing manifest revision link for %s", ErrFormat, st.current)
	}
	if !st.indexed[st.current] {
		return nil, fmt.Errorf("%w: missing tag index link for %s", ErrFormat, st.current)
	}
	if len(st.revisions) != 1 || len(st.indexed) != 1 {
		return nil, fmt.Errorf("%w: stray manifest links", ErrFormat)
	}

	manifest, err := st.loadManifest()
	if err != nil {
		return nil, err
	}

	// Everything except the manifest document is delta payload and must be
	// referenced; every reference must have its layer link.
	delta := make(map[digest.Digest]int64, len(st.sizes)-1)
	for dgst, size := range st.sizes {
		if dgst == st.current {
			continue
		}
		if !manifest.References(dgst) {
			return nil, fmt.Errorf("%w: blob %s is not referenced by the manifest", ErrFormat, dgst)
		}
		delta[dgst] = size
	}
	for _, desc := range manifest.Descriptors() {
		if !st.layerLinks[desc.Digest] {
			return nil, fmt.Errorf("%w: missing layer link for %s", ErrFormat, desc.Digest)
		}
	}
	for dgst := range st.layerLinks {
		if !manifest.References(dgst) {
			return nil, fmt.Errorf("%w: stray layer link for %s", ErrFormat, dgst)
		}
	}

	return &Archive{
		ref:      registry.Reference{Repository: st.repo, Tag: tag},
		version:  st.version,
		manifest: manifest,
		dir:      st.dir,
		sizes:    delta,
	}, nil
}

func (st *readState) loadManifest() (*registry.Manifest, error) {
	size, ok := st.sizes[st.current]
	if !ok {
		return nil, fmt.Errorf("%w: manifest blob %s not in archive", ErrFormat, st.current)
	}
	if size > maxManifestBytes {
		return nil, fmt.Errorf("%w: manifest blob %s exceeds %d bytes", ErrFormat, st.current, maxManifestBytes)
	}

	raw, err := os.ReadFile(filepath.Join(st.dir, filepath.FromSlash(layout.BlobDataPath(st.current))))
	if err != nil {
		return nil, err
	}
	manifest, err := registry.ParseManifest("", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %w", ErrFormat, st.current, err)
	}
	return manifest, nil
}

func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxLinkBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata entry: %v", ErrFormat, err)
	}
	if len(data) > maxLinkBytes {
		return nil, fmt.Errorf("%w: metadata entry exceeds %d bytes", ErrFormat, maxLinkBytes)
	}
	return data, nil
}
