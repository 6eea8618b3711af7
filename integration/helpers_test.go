//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/regdelta"
	"github.com/meigma/regdelta/registry"
)

const registryImage = "registry:2"

// --- Registry Container Setup ---

var (
	registryOnce sync.Once
	sharedURL    string
	sharedHost   string
	registryErr  error
)

func skipWithoutDocker(tb testing.TB) {
	tb.Helper()
	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}
}

// sharedRegistry returns the base URL of a registry container shared
// across tests. Only tests that never restart or delete may use it;
// everything else gets a dedicated container.
func sharedRegistry(tb testing.TB) string {
	tb.Helper()
	skipWithoutDocker(tb)

	registryOnce.Do(func() {
		reg, err := startRegistry(context.Background(), "")
		if err != nil {
			registryErr = err
			return
		}
		sharedURL = reg.baseURL
		sharedHost = reg.host
	})
	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}
	return sharedURL
}

// sharedRegistryHost returns the shared registry's host:port, the form
// upstream references use.
func sharedRegistryHost(tb testing.TB) string {
	tb.Helper()
	sharedRegistry(tb)
	return sharedHost
}

// testRegistry is a dedicated registry container owned by one test.
type testRegistry struct {
	container testcontainers.Container
	baseURL   string
	host      string
}

// dedicatedRegistry starts a registry container for a single test. When
// mountDir is non-empty it is bind-mounted as the registry's storage
// root, so the test can write the storage tree from the host side.
func dedicatedRegistry(tb testing.TB, mountDir string) *testRegistry {
	tb.Helper()
	skipWithoutDocker(tb)

	reg, err := startRegistry(context.Background(), mountDir)
	require.NoError(tb, err, "start dedicated registry")
	tb.Cleanup(func() {
		_ = reg.container.Terminate(context.Background())
	})
	return reg
}

func startRegistry(ctx context.Context, mountDir string) (*testRegistry, error) {
	req := testcontainers.ContainerRequest{
		Image:        registryImage,
		ExposedPorts: []string{"5000/tcp"},
		Env: map[string]string{
			"REGISTRY_STORAGE_DELETE_ENABLED": "true",
		},
		WaitingFor: wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}
	if mountDir != "" {
		req.HostConfigModifier = func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, mountDir+":/var/lib/registry")
		}
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start registry container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve registry host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return nil, fmt.Errorf("resolve registry port: %w", err)
	}

	hostPort := fmt.Sprintf("%s:%s", host, port.Port())
	return &testRegistry{
		container: container,
		baseURL:   "http://" + hostPort,
		host:      hostPort,
	}, nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Container Runtime Adapter ---

// registryRuntime drives the dedicated container through testcontainers,
// standing in for the engine backend's restart and garbage-collect
// operations.
type registryRuntime struct {
	container testcontainers.Container
}

func (r *registryRuntime) Restart(ctx context.Context, _ string) error {
	timeout := 10 * time.Second
	if err := r.container.Stop(ctx, &timeout); err != nil {
		return err
	}
	return r.container.Start(ctx)
}

func (r *registryRuntime) GarbageCollect(ctx context.Context, _ string) error {
	code, out, err := r.container.Exec(ctx, []string{
		"/bin/registry", "garbage-collect", "/etc/docker/registry/config.yml",
	})
	if err != nil {
		return err
	}
	if code != 0 {
		output, _ := io.ReadAll(out)
		return fmt.Errorf("garbage-collect exited %d: %s", code, output)
	}
	return nil
}

// --- Test Client Factory ---

// newDeltaClient creates a client for the registry at baseURL. Backend
// detection is disabled; tests that need container control pass a
// runtime via extra options.
func newDeltaClient(tb testing.TB, baseURL string, opts ...regdelta.Option) *regdelta.Client {
	tb.Helper()

	allOpts := append([]regdelta.Option{
		regdelta.WithRegistry(baseURL),
		regdelta.WithEngine(nil, nil),
	}, opts...)

	client, err := regdelta.New(allOpts...)
	require.NoError(tb, err, "create delta client")
	tb.Cleanup(func() { _ = client.Close() })
	return client
}

// --- Test Data Helpers ---

// repoName derives a registry-safe repository name unique to the test.
func repoName(tb testing.TB) string {
	tb.Helper()
	name := strings.ToLower(tb.Name())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, name)
	return strings.Trim(name, "-")
}

// stageImage pushes a synthetic image through the registry API.
func stageImage(tb testing.TB, client *regdelta.Client, repo, tag string, img *registry.TestImage) {
	tb.Helper()
	ctx := context.Background()
	reg := client.Registry()

	for dgst, content := range img.Blobs() {
		err := reg.PushBlob(ctx, repo, dgst, int64(len(content)), bytes.NewReader(content))
		require.NoError(tb, err, "push blob %s", dgst)
	}
	_, err := reg.PutManifest(ctx, registry.Reference{Repository: repo, Tag: tag},
		img.Manifest.MediaType, img.Manifest.Raw)
	require.NoError(tb, err, "put manifest %s:%s", repo, tag)
}

// upgradePair builds a base and target that share two layers; the delta
// is the target's new config and third layer.
func upgradePair() (base, target *registry.TestImage) {
	l1, l2 := []byte("integration-layer-1"), []byte("integration-layer-2")
	base = registry.NewTestImage([]byte("integration-config-v1"), l1, l2, []byte("integration-layer-3"))
	target = registry.NewTestImage([]byte("integration-config-v2"), l1, l2, []byte("integration-layer-4"))
	return base, target
}
