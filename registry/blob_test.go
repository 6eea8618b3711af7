package registry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_BlobExists(t *testing.T) {
	t.Parallel()

	dgst := digest.FromString("blob content")

	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr error
	}{
		{name: "present", status: http.StatusOK, want: true},
		{name: "absent", status: http.StatusNotFound, want: false},
		{name: "unexpected status", status: http.StatusForbidden, wantErr: ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Equal(t, "/v2/app/blobs/"+dgst.String(), r.URL.Path)
				w.WriteHeader(tt.status)
			})

			got, err := c.BlobExists(context.Background(), "app", dgst)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_FetchBlob(t *testing.T) {
	t.Parallel()

	content := []byte("layer bytes")
	dgst := digest.FromBytes(content)

	t.Run("verified download", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write(content)
		})

		got, err := c.FetchBlob(context.Background(), "app", dgst)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("corrupted content", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("tampered"))
		})

		_, err := c.FetchBlob(context.Background(), "app", dgst)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("missing blob", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := c.FetchBlob(context.Background(), "app", dgst)
		assert.ErrorIs(t, err, ErrProtocol)
	})
}

func TestClient_PushBlob(t *testing.T) {
	t.Parallel()

	content := []byte("new layer")
	dgst := digest.FromBytes(content)

	t.Run("skips existing blob", func(t *testing.T) {
		t.Parallel()

		var uploads atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				uploads.Add(1)
			}
			// HEAD answers 200: blob already present.
		})

		err := c.PushBlob(context.Background(), "app", dgst, int64(len(content)), bytes.NewReader(content))
		require.NoError(t, err)
		assert.Zero(t, uploads.Load(), "no upload session for an existing blob")
	})

	t.Run("uploads through a session", func(t *testing.T) {
		t.Parallel()

		var received []byte
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodHead:
				w.WriteHeader(http.StatusNotFound)
			case r.Method == http.MethodPost:
				assert.Equal(t, "/v2/app/blobs/uploads/", r.URL.Path)
				w.Header().Set("Location", "/v2/app/blobs/uploads/session-1")
				w.WriteHeader(http.StatusAccepted)
			case r.Method == http.MethodPut:
				assert.Equal(t, "/v2/app/blobs/uploads/session-1", r.URL.Path)
				assert.Equal(t, dgst.String(), r.URL.Query().Get("digest"))

				var err error
				received, err = io.ReadAll(r.Body)
				require.NoError(t, err)

				w.Header().Set("Docker-Content-Digest", dgst.String())
				w.WriteHeader(http.StatusCreated)
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL)
			}
		})

		err := c.PushBlob(context.Background(), "app", dgst, int64(len(content)), bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, content, received)
	})

	t.Run("registry stored a different digest", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodHead:
				w.WriteHeader(http.StatusNotFound)
			case http.MethodPost:
				w.Header().Set("Location", "/v2/app/blobs/uploads/session-1")
				w.WriteHeader(http.StatusAccepted)
			case http.MethodPut:
				w.Header().Set("Docker-Content-Digest", digest.FromString("other").String())
				w.WriteHeader(http.StatusCreated)
			}
		})

		err := c.PushBlob(context.Background(), "app", dgst, int64(len(content)), bytes.NewReader(content))
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("session refused", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodHead:
				w.WriteHeader(http.StatusNotFound)
			default:
				w.WriteHeader(http.StatusForbidden)
			}
		})

		err := c.PushBlob(context.Background(), "app", dgst, int64(len(content)), bytes.NewReader(content))
		assert.ErrorIs(t, err, ErrProtocol)
	})
}

func TestClient_PutManifest(t *testing.T) {
	t.Parallel()

	ref := Reference{Repository: "app", Tag: "v1"}
	raw := []byte(`{"schemaVersion":2}`)
	dgst := digest.FromBytes(raw)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/v2/app/manifests/v1", r.URL.Path)
			assert.Equal(t, MediaTypeDockerManifest, r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, raw, body)

			w.Header().Set("Docker-Content-Digest", dgst.String())
			w.WriteHeader(http.StatusCreated)
		})

		got, err := c.PutManifest(context.Background(), ref, MediaTypeDockerManifest, raw)
		require.NoError(t, err)
		assert.Equal(t, dgst, got)
	})

	t.Run("registry stored a different digest", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Docker-Content-Digest", digest.FromString("other").String())
			w.WriteHeader(http.StatusCreated)
		})

		_, err := c.PutManifest(context.Background(), ref, MediaTypeDockerManifest, raw)
		assert.ErrorIs(t, err, ErrIntegrity)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := c.PutManifest(context.Background(), ref, MediaTypeDockerManifest, raw)
		assert.ErrorIs(t, err, ErrProtocol)
	})
}

func TestClient_DeleteManifest(t *testing.T) {
	t.Parallel()

	dgst := digest.FromString("manifest")

	tests := []struct {
		name    string
		status  int
		wantErr error
		errText string
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "not found", status: http.StatusNotFound, wantErr: ErrManifestNotFound},
		{name: "deletion disabled", status: http.StatusMethodNotAllowed, wantErr: ErrProtocol, errText: "deletion disabled"},
		{name: "unexpected status", status: http.StatusConflict, wantErr: ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/v2/app/manifests/"+dgst.String(), r.URL.Path)
				w.WriteHeader(tt.status)
			})

			err := c.DeleteManifest(context.Background(), "app", dgst)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.errText != "" {
					assert.Contains(t, err.Error(), tt.errText)
				}
				return
			}
			require.NoError(t, err)
		})
	}
}
