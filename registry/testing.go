package registry

import (
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// TestImage is a synthetic image built by NewTestImage.
// This is not intended for production use.
type TestImage struct {
	Manifest *Manifest
	Config   []byte
	Layers   [][]byte
}

// NewTestImage assembles an OCI manifest over the given config and layer
// contents with correct digests and sizes. The manifest bytes are
// deterministic for identical inputs.
func NewTestImage(config []byte, layers ...[]byte) *TestImage {
	body := manifestBody{
		SchemaVersion: 2,
		MediaType:     ocispec.MediaTypeImageManifest,
		Config: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageConfig,
			Digest:    digest.FromBytes(config),
			Size:      int64(len(config)),
		},
	}
	for _, layer := range layers {
		body.Layers = append(body.Layers, ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageLayerGzip,
			Digest:    digest.FromBytes(layer),
			Size:      int64(len(layer)),
		})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("registry: marshal test manifest: %v", err))
	}
	m, err := ParseManifest(ocispec.MediaTypeImageManifest, raw)
	if err != nil {
		panic(fmt.Sprintf("registry: parse test manifest: %v", err))
	}

	return &TestImage{Manifest: m, Config: config, Layers: layers}
}

// Blobs returns the image's blobs keyed by digest, config included.
func (ti *TestImage) Blobs() map[digest.Digest][]byte {
	out := map[digest.Digest][]byte{
		ti.Manifest.Config.Digest: ti.Config,
	}
	for i, layer := range ti.Layers {
		out[ti.Manifest.Layers[i].Digest] = layer
	}
	return out
}
