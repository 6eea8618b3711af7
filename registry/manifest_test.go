package registry

import (
	"encoding/json"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifestJSON(t *testing.T, mediaType string) []byte {
	t.Helper()

	raw, err := json.Marshal(manifestBody{
		SchemaVersion: 2,
		MediaType:     mediaType,
		Config: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageConfig,
			Digest:    digest.FromString("config"),
			Size:      6,
		},
		Layers: []ocispec.Descriptor{
			{MediaType: ocispec.MediaTypeImageLayerGzip, Digest: digest.FromString("layer-1"), Size: 7},
			{MediaType: ocispec.MediaTypeImageLayerGzip, Digest: digest.FromString("layer-2"), Size: 7},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestParseManifest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mediaType string
		body      func(t *testing.T) []byte
		wantErr   error
		wantType  string
	}{
		{
			name:      "oci manifest",
			mediaType: ocispec.MediaTypeImageManifest,
			body:      func(t *testing.T) []byte { return testManifestJSON(t, ocispec.MediaTypeImageManifest) },
			wantType:  ocispec.MediaTypeImageManifest,
		},
		{
			name:      "docker schema 2 manifest",
			mediaType: MediaTypeDockerManifest,
			body:      func(t *testing.T) []byte { return testManifestJSON(t, MediaTypeDockerManifest) },
			wantType:  MediaTypeDockerManifest,
		},
		{
			name:      "empty content type falls back to embedded media type",
			mediaType: "",
			body:      func(t *testing.T) []byte { return testManifestJSON(t, ocispec.MediaTypeImageManifest) },
			wantType:  ocispec.MediaTypeImageManifest,
		},
		{
			name:      "octet-stream falls back to embedded media type",
			mediaType: "application/octet-stream",
			body:      func(t *testing.T) []byte { return testManifestJSON(t, MediaTypeDockerManifest) },
			wantType:  MediaTypeDockerManifest,
		},
		{
			name:      "docker manifest list rejected",
			mediaType: MediaTypeDockerManifestList,
			body:      func(t *testing.T) []byte { return []byte(`{"schemaVersion":2,"manifests":[]}`) },
			wantErr:   ErrUnsupportedManifestKind,
		},
		{
			name:      "oci index rejected",
			mediaType: ocispec.MediaTypeImageIndex,
			body:      func(t *testing.T) []byte { return []byte(`{"schemaVersion":2,"manifests":[]}`) },
			wantErr:   ErrUnsupportedManifestKind,
		},
		{
			name:      "schema 1 rejected",
			mediaType: "application/vnd.docker.distribution.manifest.v1+prettyjws",
			body:      func(t *testing.T) []byte { return []byte(`{"schemaVersion":1}`) },
			wantErr:   ErrUnsupportedManifestKind,
		},
		{
			name:      "malformed json",
			mediaType: ocispec.MediaTypeImageManifest,
			body:      func(t *testing.T) []byte { return []byte(`{"config":`) },
			wantErr:   ErrProtocol,
		},
		{
			name:      "invalid config digest",
			mediaType: ocispec.MediaTypeImageManifest,
			body: func(t *testing.T) []byte {
				return []byte(`{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json","config":{"digest":"not-a-digest"},"layers":[]}`)
			},
			wantErr: ErrProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := tt.body(t)
			m, err := ParseManifest(tt.mediaType, raw)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, m.MediaType)
			assert.Equal(t, digest.FromBytes(raw), m.Digest)
			assert.Equal(t, raw, m.Raw)
			assert.Len(t, m.Layers, 2)
		})
	}
}

func TestManifest_Descriptors(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest(ocispec.MediaTypeImageManifest, testManifestJSON(t, ocispec.MediaTypeImageManifest))
	require.NoError(t, err)

	descs := m.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, m.Config, descs[0], "config comes first")
	assert.Equal(t, m.Layers[0], descs[1])
	assert.Equal(t, m.Layers[1], descs[2])
}

func TestManifest_References(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest(ocispec.MediaTypeImageManifest, testManifestJSON(t, ocispec.MediaTypeImageManifest))
	require.NoError(t, err)

	assert.True(t, m.References(digest.FromString("config")))
	assert.True(t, m.References(digest.FromString("layer-2")))
	assert.False(t, m.References(digest.FromString("absent")))
}
