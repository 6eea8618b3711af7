// Package layout models the Docker registry's filesystem storage layout
// (storage driver v2 paths).
//
// Delta archives carry this exact tree so a filesystem-direct restore is a
// verified copy, and the seed path can materialize images without going
// through the registry API. Path builders produce slash-separated paths
// relative to the storage root; [Store] maps them onto a real directory
// with atomic, digest-verified writes.
package layout
