package layout

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// Store writes registry storage trees directly. Blob writes are streamed
// through a digest verifier into a temp file and renamed into place, so a
// crash never leaves a partial or misnamed blob visible.
type Store struct {
	root   string
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets a logger for the store.
// If nil, a discard logger is used (default behavior).
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore opens a store over an existing storage root. The root must
// already exist: a missing directory usually means the registry's volume
// is not mounted here, and writing a fresh tree elsewhere would go
// unnoticed by the registry.
func NewStore(root string, opts ...StoreOption) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNotDirectory)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotDirectory, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	s := &Store{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Root returns the absolute storage root.
func (s *Store) Root() string {
	return s.root
}

// BlobPath returns the absolute content path for a blob.
func (s *Store) BlobPath(dgst digest.Digest) string {
	return s.abs(BlobDataPath(dgst))
}

// HasBlob reports whether the blob's content file exists.
func (s *Store) HasBlob(dgst digest.Digest) (bool, error) {
	_, err := os.Stat(s.BlobPath(dgst))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// WriteBlob stores blob content under its digest. Content already present
// is left untouched without reading r. The stream is hashed while it is
// written; a mismatch removes the temp file and returns
// [ErrDigestMismatch].
func (s *Store) WriteBlob(dgst digest.Digest, r io.Reader) error {
	exists, err := s.HasBlob(dgst)
	if err != nil {
		return err
	}
	if exists {
		s.log().Debug("blob present, skipping write", "digest", dgst.String())
		return nil
	}

	target := s.BlobPath(dgst)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "blob-*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	verifier := dgst.Verifier()
	n, err := io.Copy(io.MultiWriter(tmp, verifier), r)
	if err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write blob %s: %w", dgst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if !verifier.Verified() {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: blob %s", ErrDigestMismatch, dgst)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	s.log().Debug("wrote blob", "digest", dgst.String(), "size", n)
	return nil
}

// LinkLayer records the blob as referenced by the repository.
func (s *Store) LinkLayer(repo string, dgst digest.Digest) error {
	return s.writeLink(LayerLinkPath(repo, dgst), dgst)
}

// LinkManifest records a manifest revision and points the tag at it,
// writing the revision link, the tag's current link and its index entry.
// The manifest's content blob must be written separately via [Store.WriteBlob].
func (s *Store) LinkManifest(repo, tag string, dgst digest.Digest) error {
	if err := s.writeLink(ManifestRevisionLinkPath(repo, dgst), dgst); err != nil {
		return err
	}
	if err := s.writeLink(TagIndexLinkPath(repo, tag, dgst), dgst); err != nil {
		return err
	}
	return s.writeLink(TagCurrentLinkPath(repo, tag), dgst)
}

// writeLink atomically writes a link file containing the digest string.
func (s *Store) writeLink(rel string, dgst digest.Digest) error {
	target := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "link-*.part")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(dgst.String()); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}
