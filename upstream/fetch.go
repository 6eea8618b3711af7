package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote/errcode"

	"github.com/meigma/regdelta/registry"
)

// Resolve resolves a full reference (host/repo:tag) to its manifest
// descriptor without fetching the body.
func (c *Client) Resolve(ctx context.Context, ref string) (ocispec.Descriptor, error) {
	repo, err := c.repository(ref)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	desc, err := repo.Resolve(ctx, tagOrDigest(repo.Reference.Reference))
	if err != nil {
		return ocispec.Descriptor{}, mapError(err)
	}

	return desc, nil
}

// FetchManifest fetches ref's manifest. The raw bytes are verified
// against the upstream's descriptor, so the digest survives re-pushing
// unchanged. Multi-platform kinds fail with
// [registry.ErrUnsupportedManifestKind].
func (c *Client) FetchManifest(ctx context.Context, ref string) (*registry.Manifest, error) {
	repo, err := c.repository(ref)
	if err != nil {
		return nil, err
	}

	desc, rc, err := repo.FetchReference(ctx, tagOrDigest(repo.Reference.Reference))
	if err != nil {
		return nil, mapError(err)
	}
	defer rc.Close()

	raw, err := content.ReadAll(rc, desc)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", ref, mapError(err))
	}

	m, err := registry.ParseManifest(desc.MediaType, raw)
	if err != nil {
		return nil, err
	}

	c.log().Debug("fetched upstream manifest",
		"ref", ref,
		"digest", m.Digest.String(),
		"layers", len(m.Layers))
	return m, nil
}

// FetchBlob opens a blob on the upstream. The caller closes the reader
// and is expected to verify the digest while consuming it.
func (c *Client) FetchBlob(ctx context.Context, ref string, desc ocispec.Descriptor) (io.ReadCloser, error) {
	repo, err := c.repository(ref)
	if err != nil {
		return nil, err
	}

	rc, err := repo.Fetch(ctx, desc)
	if err != nil {
		return nil, mapError(err)
	}

	return rc, nil
}

// tagOrDigest defaults an empty reference part to the latest tag.
func tagOrDigest(ref string) string {
	if ref == "" {
		return registry.DefaultTag
	}
	return ref
}

// mapError maps ORAS errors to this package's sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		}
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return err
}
