// Package gc coordinates the registry-side consistency work that image
// deletion and out-of-band storage writes require.
//
// The registry:2 server treats its storage as its own: deleting a
// manifest through the API leaves the referenced blobs on disk until a
// garbage-collection pass runs, and writing blobs straight into the
// storage tree leaves the server's in-memory caches unaware of them. The
// [Coordinator] sequences the delete, the in-container collection pass,
// and the restart-and-wait that brings the server back in sync with its
// storage.
package gc
