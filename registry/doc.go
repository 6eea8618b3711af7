// Package registry implements a minimal Docker Registry HTTP API V2
// client for plain-HTTP staging registries.
//
// The client covers exactly the surface delta distribution needs:
// manifest fetch/head/put/delete, blob existence checks, digest-verified
// blob download, and monolithic blob upload sessions. Only single-image
// manifests (Docker schema 2 and OCI) are handled; manifest lists and
// indexes are rejected.
//
// Idempotent reads (GET/HEAD) retry with exponential backoff on transport
// errors and retryable status codes. Writes are never retried.
package registry
