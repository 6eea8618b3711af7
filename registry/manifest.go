package registry

import (
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Manifest is a parsed single-image manifest together with the exact bytes
// it was served as. Raw is preserved verbatim because the digest is defined
// over those bytes; re-serialising would change the identity.
type Manifest struct {
	// MediaType is the effective manifest media type.
	MediaType string

	// Digest is the sha256 of Raw.
	Digest digest.Digest

	// Raw holds the canonical manifest bytes as served by the registry.
	Raw []byte

	// Config is the image config descriptor.
	Config ocispec.Descriptor

	// Layers are the layer descriptors in manifest order.
	Layers []ocispec.Descriptor
}

// manifestBody is the wire shape shared by Docker schema 2 and OCI image
// manifests; only the fields the diff engine needs are decoded.
type manifestBody struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType,omitempty"`
	Config        ocispec.Descriptor   `json:"config"`
	Layers        []ocispec.Descriptor `json:"layers"`
}

// ParseManifest parses raw manifest bytes served with the given media type.
//
// An empty mediaType falls back to the manifest's embedded mediaType field.
// List and index kinds, and any kind outside the two supported single-image
// types, fail with [ErrUnsupportedManifestKind].
func ParseManifest(mediaType string, raw []byte) (*Manifest, error) {
	var body manifestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed manifest: %v", ErrProtocol, err)
	}

	effective := mediaType
	if effective == "" || effective == "application/octet-stream" {
		effective = body.MediaType
	}

	if indexManifest(effective) {
		return nil, fmt.Errorf("%w: %s refers to multiple images; single-platform manifests only", ErrUnsupportedManifestKind, effective)
	}
	if !supportedManifest(effective) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedManifestKind, effective)
	}

	if err := body.Config.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config digest: %v", ErrProtocol, err)
	}
	for _, layer := range body.Layers {
		if err := layer.Digest.Validate(); err != nil {
			return nil, fmt.Errorf("%w: layer digest: %v", ErrProtocol, err)
		}
	}

	return &Manifest{
		MediaType: effective,
		Digest:    digest.FromBytes(raw),
		Raw:       raw,
		Config:    body.Config,
		Layers:    body.Layers,
	}, nil
}

// Descriptors returns the config descriptor followed by the layer
// descriptors, the full blob set the manifest references.
func (m *Manifest) Descriptors() []ocispec.Descriptor {
	out := make([]ocispec.Descriptor, 0, len(m.Layers)+1)
	out = append(out, m.Config)
	out = append(out, m.Layers...)
	return out
}

// References reports whether the manifest references the given blob digest.
func (m *Manifest) References(dgst digest.Digest) bool {
	if m.Config.Digest == dgst {
		return true
	}
	for _, layer := range m.Layers {
		if layer.Digest == dgst {
			return true
		}
	}
	return false
}
