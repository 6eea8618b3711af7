package regdelta

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/regdelta/internal/testutil"
	"github.com/meigma/regdelta/layout"
	"github.com/meigma/regdelta/registry"
)

// newTestClient builds a client against an in-memory registry. Backend
// detection is disabled so tests never probe for a local engine; pass
// extra options to attach mocks.
func newTestClient(t *testing.T, fake *testutil.FakeRegistry, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	base := []Option{WithRegistry(srv.URL), WithEngine(nil, nil)}
	c, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// transportMock implements engine.Transport with overridable functions.
type transportMock struct {
	pushFunc func(ctx context.Context, localRef string, ref registry.Reference) error
	pullFunc func(ctx context.Context, ref registry.Reference, localRef string) error
}

func (m *transportMock) Push(ctx context.Context, localRef string, ref registry.Reference) error {
	if m.pushFunc != nil {
		return m.pushFunc(ctx, localRef, ref)
	}
	return nil
}

func (m *transportMock) Pull(ctx context.Context, ref registry.Reference, localRef string) error {
	if m.pullFunc != nil {
		return m.pullFunc(ctx, ref, localRef)
	}
	return nil
}

// runtimeMock implements engine.Runtime with overridable functions.
type runtimeMock struct {
	restartFunc func(ctx context.Context, container string) error
	gcFunc      func(ctx context.Context, container string) error
}

func (m *runtimeMock) Restart(ctx context.Context, container string) error {
	if m.restartFunc != nil {
		return m.restartFunc(ctx, container)
	}
	return nil
}

func (m *runtimeMock) GarbageCollect(ctx context.Context, container string) error {
	if m.gcFunc != nil {
		return m.gcFunc(ctx, container)
	}
	return nil
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistry()
	c := newTestClient(t, fake)

	require.NotNil(t, c.Registry())
	assert.NoError(t, c.Registry().Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNew_InvalidRegistryURL(t *testing.T) {
	t.Parallel()

	_, err := New(WithRegistry("ftp://example.com"), WithEngine(nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestNew_InvalidWorkers(t *testing.T) {
	t.Parallel()

	_, err := New(WithWorkers(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestNew_MissingStorageRoot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(testutil.NewFakeRegistry().Handler())
	t.Cleanup(srv.Close)

	_, err := New(
		WithRegistry(srv.URL),
		WithEngine(nil, nil),
		WithStorageRoot(filepath.Join(t.TempDir(), "not-mounted")),
	)
	require.ErrorIs(t, err, layout.ErrNotDirectory)
}

func TestNew_ForcedCopyToolUnsupported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(testutil.NewFakeRegistry().Handler())
	t.Cleanup(srv.Close)

	_, err := New(WithRegistry(srv.URL), WithCopyTool("crane"))
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "crane")
}

func TestNew_ForceAPISkipsStore(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistry()
	c := newTestClient(t, fake,
		WithStorageRoot(t.TempDir()),
		WithForceAPI(true),
	)

	assert.Nil(t, c.store)
}

func TestClient_List(t *testing.T) {
	t.Parallel()

	img := registry.NewTestImage([]byte("config"), []byte("layer-1"), []byte("layer-2"))
	fake := testutil.NewFakeRegistry()
	fake.SeedImage("app", "v1", img)
	c := newTestClient(t, fake)

	got, err := c.List(context.Background(), "app:v1")
	require.NoError(t, err)

	assert.Equal(t, "app", got.Ref.Repository)
	assert.Equal(t, "v1", got.Ref.Tag)
	assert.Equal(t, img.Manifest.Digest, got.ManifestDigest)
	assert.Equal(t, img.Manifest.Config.Digest, got.Config.Digest)
	require.Len(t, got.Layers, 2)
	assert.Equal(t, img.Manifest.Layers[0].Digest, got.Layers[0].Digest)

	want := img.Manifest.Config.Size
	for _, l := range img.Manifest.Layers {
		want += l.Size
	}
	assert.Equal(t, want, got.TotalSize)
}

func TestClient_List_NotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, testutil.NewFakeRegistry())

	_, err := c.List(context.Background(), "app:v1")
	require.ErrorIs(t, err, ErrManifestNotFound)
}

func TestClient_List_InvalidReference(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, testutil.NewFakeRegistry())

	_, err := c.List(context.Background(), ":::")
	require.ErrorIs(t, err, ErrInvalidReference)
}
