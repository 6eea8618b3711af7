package regdelta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/regdelta/layout"
	"github.com/meigma/regdelta/registry"
)

// destination receives image content during restores and seeding.
// putManifest must only be called after every referenced blob is in
// place; the restore sequence depends on that ordering.
type destination interface {
	// name identifies the transport in logs and results.
	name() string

	// hasBlob reports whether the blob is already present for the
	// repository.
	hasBlob(ctx context.Context, repo string, dgst digest.Digest) (bool, error)

	// putBlob writes blob content. The destination verifies the digest.
	putBlob(ctx context.Context, repo string, desc ocispec.Descriptor, r io.Reader) error

	// linkBlob records that the repository references the blob without
	// moving content. Only meaningful for destinations that separate
	// content from references.
	linkBlob(repo string, dgst digest.Digest) error

	// putManifest writes the manifest document and points the tag at it.
	putManifest(ctx context.Context, ref registry.Reference, m *registry.Manifest) error

	// needsInvalidate reports whether writes bypassed the registry API
	// and the consistency step must run afterwards.
	needsInvalidate() bool
}

// destination picks the restore transport. Filesystem-direct needs both
// a usable storage root and a runtime to restart the registry afterwards;
// anything less falls back to the API.
func (c *Client) destination() destination {
	if c.store != nil && c.coord != nil {
		return &fsDestination{store: c.store}
	}
	return &apiDestination{reg: c.reg}
}

// apiDestination uploads through the registry HTTP API.
type apiDestination struct {
	reg *registry.Client
}

func (d *apiDestination) name() string { return "api" }

func (d *apiDestination) hasBlob(ctx context.Context, repo string, dgst digest.Digest) (bool, error) {
	return d.reg.BlobExists(ctx, repo, dgst)
}

func (d *apiDestination) putBlob(ctx context.Context, repo string, desc ocispec.Descriptor, r io.Reader) error {
	return d.reg.PushBlob(ctx, repo, desc.Digest, desc.Size, r)
}

func (d *apiDestination) linkBlob(string, digest.Digest) error {
	// Uploading through the API links implicitly.
	return nil
}

func (d *apiDestination) putManifest(ctx context.Context, ref registry.Reference, m *registry.Manifest) error {
	_, err := d.reg.PutManifest(ctx, ref, m.MediaType, m.Raw)
	return err
}

func (d *apiDestination) needsInvalidate() bool { return false }

// fsDestination writes the registry's storage tree directly.
type fsDestination struct {
	store *layout.Store
}

func (d *fsDestination) name() string { return "filesystem" }

func (d *fsDestination) hasBlob(_ context.Context, _ string, dgst digest.Digest) (bool, error) {
	// The blob store is content-addressed and shared across repositories.
	return d.store.HasBlob(dgst)
}

func (d *fsDestination) putBlob(_ context.Context, _ string, desc ocispec.Descriptor, r io.Reader) error {
	if err := d.store.WriteBlob(desc.Digest, r); err != nil {
		if errors.Is(err, layout.ErrDigestMismatch) {
			return fmt.Errorf("%w: %v", registry.ErrIntegrity, err)
		}
		return err
	}
	return nil
}

func (d *fsDestination) linkBlob(repo string, dgst digest.Digest) error {
	return d.store.LinkLayer(repo, dgst)
}

func (d *fsDestination) putManifest(_ context.Context, ref registry.Reference, m *registry.Manifest) error {
	if err := d.store.WriteBlob(m.Digest, bytes.NewReader(m.Raw)); err != nil {
		return err
	}
	return d.store.LinkManifest(ref.Repository, ref.Tag, m.Digest)
}

func (d *fsDestination) needsInvalidate() bool { return true }
