package regdelta

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/regdelta/archive"
	"github.com/meigma/regdelta/registry"
)

// DiffResult describes a packaged delta archive.
type DiffResult struct {
	// Base and Target are the compared references.
	Base   registry.Reference
	Target registry.Reference

	// ArchivePath is where the delta archive was written.
	ArchivePath string

	// ManifestDigest is the target manifest's digest.
	ManifestDigest digest.Digest

	// BlobCount and BlobBytes cover the delta payload carried in the
	// archive, the manifest document excluded.
	BlobCount int
	BlobBytes int64

	// SharedCount is the number of target blobs already present in the
	// base, left out of the archive.
	SharedCount int
}

// DiffOption configures a Diff call.
type DiffOption func(*diffOptions)

type diffOptions struct {
	output string
}

// DiffWithOutput sets the archive path. The default is
// "<repository>-<tag>.tar.gz" in the working directory.
func DiffWithOutput(path string) DiffOption {
	return func(o *diffOptions) {
		o.output = path
	}
}

// Diff computes the blobs targetRef carries beyond baseRef and packages
// them, together with the target manifest, into a delta archive. Both
// references must be staged; manifests are fetched fresh.
//
// Membership is decided by digest alone. The target manifest document is
// always part of the archive, so diffing a reference against itself
// yields a loadable manifest-only archive.
func (c *Client) Diff(ctx context.Context, baseRef, targetRef string, opts ...DiffOption) (*DiffResult, error) {
	var o diffOptions
	for _, opt := range opts {
		opt(&o)
	}

	base, err := registry.ParseReference(baseRef)
	if err != nil {
		return nil, err
	}
	target, err := registry.ParseReference(targetRef)
	if err != nil {
		return nil, err
	}

	// Step 1: fetch both manifests fresh.
	baseManifest, err := c.reg.FetchManifest(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("base image %s: %w", base, err)
	}
	targetManifest, err := c.reg.FetchManifest(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("target image %s: %w", target, err)
	}

	// Step 2: set difference over digests.
	delta, shared := diffDescriptors(baseManifest, targetManifest)

	out := o.output
	if out == "" {
		out = target.ArchiveName()
	}

	// Step 3: spool delta blobs to disk, bounded parallelism.
	spool, err := os.MkdirTemp("", "regdelta-diff-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(spool)

	var mu sync.Mutex
	paths := make(map[digest.Digest]string, len(delta))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, desc := range delta {
		g.Go(func() error {
			data, err := c.reg.FetchBlob(gctx, target.Repository, desc.Digest)
			if err != nil {
				return fmt.Errorf("fetch blob %s: %w", desc.Digest, err)
			}
			p := filepath.Join(spool, desc.Digest.Encoded())
			if err := os.WriteFile(p, data, 0o600); err != nil {
				return err
			}
			mu.Lock()
			paths[desc.Digest] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Step 4: pack deterministically.
	if err := archive.Pack(out, target, targetManifest, paths); err != nil {
		return nil, err
	}

	var deltaBytes int64
	for _, desc := range delta {
		deltaBytes += desc.Size
	}

	c.log().Info("packaged delta archive",
		"base", base.String(),
		"target", target.String(),
		"archive", out,
		"delta_blobs", len(delta),
		"delta_bytes", deltaBytes,
		"shared_blobs", shared)

	return &DiffResult{
		Base:           base,
		Target:         target,
		ArchivePath:    out,
		ManifestDigest: targetManifest.Digest,
		BlobCount:      len(delta),
		BlobBytes:      deltaBytes,
		SharedCount:    shared,
	}, nil
}

// diffDescriptors returns the target descriptors whose digests are
// absent from the base, deduplicated, plus the count of shared target
// digests. Media type, size and ordering play no part in membership.
func diffDescriptors(base, target *registry.Manifest) (delta []ocispec.Descriptor, shared int) {
	have := make(map[digest.Digest]struct{})
	for _, desc := range base.Descriptors() {
		have[desc.Digest] = struct{}{}
	}

	seen := make(map[digest.Digest]struct{})
	for _, desc := range target.Descriptors() {
		if _, dup := seen[desc.Digest]; dup {
			continue
		}
		seen[desc.Digest] = struct{}{}

		if _, ok := have[desc.Digest]; ok {
			shared++
			continue
		}
		delta = append(delta, desc)
	}
	return delta, shared
}
