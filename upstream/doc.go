// Package upstream fetches images from internet-facing registries for
// seeding the staging registry.
//
// It wraps ORAS for the parts of upstream access that the staging-side
// client deliberately avoids: bearer token exchange, credential stores,
// and TLS endpoints. Fetched manifests come back as the staging side's
// [registry.Manifest] so the seed path can reuse the same destinations
// as archive restore.
package upstream
