package regdelta

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/regdelta/archive"
	"github.com/meigma/regdelta/registry"
)

// LoadResult describes an applied delta archive.
type LoadResult struct {
	// Ref is the reference the archive restored.
	Ref registry.Reference

	// ManifestDigest is the restored manifest's digest.
	ManifestDigest digest.Digest

	// Transport names the destination used, "api" or "filesystem".
	Transport string

	// Uploaded and Skipped count delta blobs written versus already
	// present at the destination.
	Uploaded int
	Skipped  int
}

// Load applies a delta archive to the staging registry and makes its tag
// resolvable.
//
// Every blob the target manifest references must be either inside the
// archive or already present at the destination; otherwise Load fails
// with [ErrMissingBaseImage] before writing anything. The manifest is
// written strictly after all blobs, so a half-applied load never leaves
// a tag pointing at missing content, and loading the same archive twice
// is a no-op the second time.
func (c *Client) Load(ctx context.Context, path string) (*LoadResult, error) {
	// Step 1: open and structurally validate the archive.
	ar, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer ar.Close()

	ref := ar.Reference()
	m := ar.Manifest()
	dest := c.destination()

	inArchive := make(map[digest.Digest]struct{})
	for _, dgst := range ar.Blobs() {
		inArchive[dgst] = struct{}{}
	}

	// Step 2: referential integrity before any write. The delta is only
	// closed with respect to the base it was computed against; that base
	// has to be here.
	var missing []digest.Digest
	checked := make(map[digest.Digest]struct{})
	for _, desc := range m.Descriptors() {
		if _, done := checked[desc.Digest]; done {
			continue
		}
		checked[desc.Digest] = struct{}{}
		if _, ok := inArchive[desc.Digest]; ok {
			continue
		}
		ok, err := dest.hasBlob(ctx, ref.Repository, desc.Digest)
		if err != nil {
			return nil, fmt.Errorf("check blob %s: %w", desc.Digest, err)
		}
		if !ok {
			missing = append(missing, desc.Digest)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s not present at the destination; load the base archive first",
			ErrMissingBaseImage, digestList(missing))
	}

	// Step 3: delta blobs, bounded parallelism, skip what is present.
	var uploaded, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, dgst := range ar.Blobs() {
		g.Go(func() error {
			ok, err := dest.hasBlob(gctx, ref.Repository, dgst)
			if err != nil {
				return err
			}
			if ok {
				skipped.Add(1)
				return nil
			}

			rc, size, err := ar.OpenBlob(dgst)
			if err != nil {
				return err
			}
			defer rc.Close()

			desc := ocispec.Descriptor{Digest: dgst, Size: size}
			if err := dest.putBlob(gctx, ref.Repository, desc, rc); err != nil {
				return fmt.Errorf("write blob %s: %w", dgst, err)
			}
			uploaded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Step 4: record every referenced blob for the repository, shared
	// base blobs included.
	for _, desc := range m.Descriptors() {
		if err := dest.linkBlob(ref.Repository, desc.Digest); err != nil {
			return nil, fmt.Errorf("link blob %s: %w", desc.Digest, err)
		}
	}

	// Step 5: manifest strictly after all blobs.
	if err := dest.putManifest(ctx, ref, m); err != nil {
		return nil, fmt.Errorf("write manifest for %s: %w", ref, err)
	}

	// Step 6: consistency step after out-of-band writes.
	if dest.needsInvalidate() {
		if err := c.coord.Invalidate(ctx); err != nil {
			return nil, err
		}
	}

	// Step 7: verify through the registry's own API.
	if err := c.verifyLoad(ctx, ref, m); err != nil {
		return nil, err
	}

	c.log().Info("loaded delta archive",
		"ref", ref.String(),
		"digest", m.Digest.String(),
		"transport", dest.name(),
		"uploaded", uploaded.Load(),
		"skipped", skipped.Load())

	return &LoadResult{
		Ref:            ref,
		ManifestDigest: m.Digest,
		Transport:      dest.name(),
		Uploaded:       int(uploaded.Load()),
		Skipped:        int(skipped.Load()),
	}, nil
}

// verifyLoad re-reads the restored image through the registry API and,
// when an engine is attached, pulls it into the local image store the
// way a consumer would.
func (c *Client) verifyLoad(ctx context.Context, ref registry.Reference, m *registry.Manifest) error {
	got, err := c.reg.FetchManifest(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: restored manifest not readable: %v", ErrRegistryState, err)
	}
	if got.Digest != m.Digest {
		return fmt.Errorf("%w: restored manifest digest %s, want %s", ErrRegistryState, got.Digest, m.Digest)
	}

	for _, desc := range m.Descriptors() {
		ok, err := c.reg.BlobExists(ctx, ref.Repository, desc.Digest)
		if err != nil {
			return fmt.Errorf("%w: blob check failed: %v", ErrRegistryState, err)
		}
		if !ok {
			return fmt.Errorf("%w: blob %s not served after restore", ErrRegistryState, desc.Digest)
		}
	}

	if c.transport != nil {
		if err := c.transport.Pull(ctx, ref, ""); err != nil {
			return fmt.Errorf("%w: verification pull failed: %v", ErrRegistryState, err)
		}
	}

	return nil
}

// digestList renders digests for error messages.
func digestList(dgsts []digest.Digest) string {
	parts := make([]string, len(dgsts))
	for i, d := range dgsts {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
