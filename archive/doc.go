// Package archive reads and writes delta archives.
//
// A delta archive is a gzip-compressed tar whose tree mirrors the
// registry's own storage layout, plus a VERSION marker naming the target
// tag:
//
//	VERSION
//	docker/registry/v2/blobs/sha256/<xx>/<hex>/data
//	docker/registry/v2/repositories/<repo>/_layers/sha256/<hex>/link
//	docker/registry/v2/repositories/<repo>/_manifests/revisions/sha256/<hex>/link
//	docker/registry/v2/repositories/<repo>/_manifests/tags/<tag>/current/link
//	docker/registry/v2/repositories/<repo>/_manifests/tags/<tag>/index/sha256/<hex>/link
//
// Blob data entries hold only the delta: blobs the base image already
// provides are omitted. Link entries cover everything the target manifest
// references, so a filesystem-direct restore is a plain subtree copy. The
// manifest document itself is stored as a blob under its own digest,
// exactly as the registry stores it.
//
// Entries are written in sorted order with zeroed file metadata, making
// archives byte-for-byte reproducible for identical inputs.
package archive
