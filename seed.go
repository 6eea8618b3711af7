package regdelta

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"
	orasregistry "oras.land/oras-go/v2/registry"

	"github.com/meigma/regdelta/registry"
)

// Seed fetches images from upstream registries and materializes them in
// the staging registry, skipping content that is already present. Each
// reference must name a registry host, repository and tag, e.g.
// "docker.io/library/alpine:3.20"; it is staged under the flattened
// repository name ("library-alpine:3.20").
//
// Blobs stream straight from the upstream into the restore destination,
// which verifies every digest on write. Multi-platform references are
// rejected with [ErrUnsupportedManifestKind]. Credentials come from the
// upstream client, see [WithUpstream].
func (c *Client) Seed(ctx context.Context, refs ...string) error {
	dest := c.destination()
	wrote := false

	for _, raw := range refs {
		changed, err := c.seedOne(ctx, dest, raw)
		if err != nil {
			return fmt.Errorf("seed %s: %w", raw, err)
		}
		wrote = wrote || changed
	}

	if wrote && dest.needsInvalidate() {
		if err := c.coord.Invalidate(ctx); err != nil {
			return err
		}
	}

	return nil
}

// seedOne stages a single upstream image. It reports whether anything
// was written to the destination.
func (c *Client) seedOne(ctx context.Context, dest destination, raw string) (bool, error) {
	local, err := localSeedRef(raw)
	if err != nil {
		return false, err
	}

	// Step 1: upstream manifest, raw bytes preserved.
	m, err := c.up.FetchManifest(ctx, raw)
	if err != nil {
		return false, err
	}

	// Step 2: skip the whole image when the staged tag already matches.
	if staged, err := c.reg.ManifestDigest(ctx, local); err == nil && staged == m.Digest {
		c.log().Info("already seeded", "ref", local.String(), "digest", m.Digest.String())
		return false, nil
	}

	// Step 3: blobs, bounded parallelism, skip present.
	var uploaded, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, desc := range dedupeDescriptors(m) {
		g.Go(func() error {
			ok, err := dest.hasBlob(gctx, local.Repository, desc.Digest)
			if err != nil {
				return err
			}
			if ok {
				skipped.Add(1)
				return nil
			}

			rc, err := c.up.FetchBlob(gctx, raw, desc)
			if err != nil {
				return fmt.Errorf("fetch blob %s: %w", desc.Digest, err)
			}
			defer rc.Close()

			if err := dest.putBlob(gctx, local.Repository, desc, rc); err != nil {
				return fmt.Errorf("write blob %s: %w", desc.Digest, err)
			}
			uploaded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	// Step 4: repository references, then the manifest last.
	for _, desc := range m.Descriptors() {
		if err := dest.linkBlob(local.Repository, desc.Digest); err != nil {
			return false, fmt.Errorf("link blob %s: %w", desc.Digest, err)
		}
	}
	if err := dest.putManifest(ctx, local, m); err != nil {
		return false, fmt.Errorf("write manifest: %w", err)
	}

	c.log().Info("seeded image",
		"upstream", raw,
		"ref", local.String(),
		"digest", m.Digest.String(),
		"transport", dest.name(),
		"uploaded", uploaded.Load(),
		"skipped", skipped.Load())
	return true, nil
}

// localSeedRef maps an upstream reference to its staging-side name: the
// registry host falls away and the repository path is flattened.
func localSeedRef(raw string) (registry.Reference, error) {
	rr, err := orasregistry.ParseReference(raw)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("%w: %q: %v", ErrInvalidReference, raw, err)
	}
	if _, err := rr.Digest(); err == nil {
		return registry.Reference{}, fmt.Errorf("%w: %q: seeding needs a tag, not a digest", ErrInvalidReference, raw)
	}

	tag := rr.Reference
	if tag == "" {
		tag = registry.DefaultTag
	}
	return registry.ParseReference(rr.Repository + ":" + tag)
}

// dedupeDescriptors returns the manifest's blob descriptors with
// duplicate digests removed.
func dedupeDescriptors(m *registry.Manifest) []ocispec.Descriptor {
	seen := make(map[digest.Digest]struct{})
	var out []ocispec.Descriptor
	for _, desc := range m.Descriptors() {
		if _, dup := seen[desc.Digest]; dup {
			continue
		}
		seen[desc.Digest] = struct{}{}
		out = append(out, desc)
	}
	return out
}
