// Package regdelta packages container images as deltas for air-gapped
// delivery.
//
// A connected host and a disconnected host each run a private Docker
// registry. regdelta computes the blob-level difference between two
// staged images, packs only the new blobs plus the target manifest into
// a tar.gz archive, and restores that archive on the other side. A
// ten-line code change ships as megabytes instead of the full image.
//
// This package provides the unified high-level API through [Client]. The
// registry protocol, archive codec, storage layout and engine backends
// live in the subpackages.
//
// # Quick Start
//
// Stage two builds, compute their delta, and carry it across:
//
//	c, err := regdelta.New()
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	// Connected side.
//	err = c.Push(ctx, "app:v1", "app:v2")
//	res, err := c.Diff(ctx, "app:v1", "app:v2")
//	// -> res.ArchivePath, e.g. "app-v2.tar.gz"
//
//	// Disconnected side (already has app:v1 staged).
//	_, err = c.Load(ctx, "app-v2.tar.gz")
//	err = c.Pull(ctx, "app:v2")
//
// # Destinations
//
// Load and Seed write through the registry API by default. When the
// registry's storage directory is mounted locally, [WithStorageRoot]
// enables filesystem-direct restores, which skip the HTTP round trips
// and finish with a registry restart so the server notices the new
// content.
//
// # Backends
//
// Moving images between the local image store and the registry uses the
// container engine when its socket answers, falls back to skopeo, and
// otherwise operates API-direct (diff, load, list and seed keep working;
// push and pull of local images do not).
package regdelta
