package regdelta

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/regdelta/registry"
)

// Listing describes a staged image's content.
type Listing struct {
	// Ref is the listed reference.
	Ref registry.Reference

	// ManifestDigest identifies the manifest document.
	ManifestDigest digest.Digest

	// MediaType is the manifest's effective media type.
	MediaType string

	// Config is the image config descriptor.
	Config ocispec.Descriptor

	// Layers are the layer descriptors in manifest order.
	Layers []ocispec.Descriptor

	// TotalSize sums the config and layer sizes.
	TotalSize int64
}

// List fetches a staged tag's manifest and reports its digests and
// sizes.
func (c *Client) List(ctx context.Context, refStr string) (*Listing, error) {
	ref, err := registry.ParseReference(refStr)
	if err != nil {
		return nil, err
	}

	m, err := c.reg.FetchManifest(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ref, err)
	}

	var total int64
	for _, desc := range m.Descriptors() {
		total += desc.Size
	}

	return &Listing{
		Ref:            ref,
		ManifestDigest: m.Digest,
		MediaType:      m.MediaType,
		Config:         m.Config,
		Layers:         m.Layers,
		TotalSize:      total,
	}, nil
}
