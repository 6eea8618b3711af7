package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/meigma/regdelta/registry"
)

// restartTimeout bounds the stop phase of a container restart.
const restartTimeout = 10 * time.Second

// gcCommand is the garbage-collect invocation inside the registry:2
// image.
var gcCommand = []string{"/bin/registry", "garbage-collect", "/etc/docker/registry/config.yml"}

// dockerAPI is the slice of the engine API the backend depends on.
type dockerAPI interface {
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, image string, options image.PushOptions) (io.ReadCloser, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerRestart(ctx context.Context, container string, options container.StopOptions) error
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

var _ dockerAPI = (*client.Client)(nil)

// Docker moves images through the container engine and controls the
// registry container. It implements both [Transport] and [Runtime].
type Docker struct {
	api    dockerAPI
	host   string
	logger *slog.Logger
}

var (
	_ Transport = (*Docker)(nil)
	_ Runtime   = (*Docker)(nil)
)

// DockerOption configures the Docker backend.
type DockerOption func(*Docker)

// WithDockerLogger sets a logger for the backend.
// If nil, a discard logger is used (default behavior).
func WithDockerLogger(logger *slog.Logger) DockerOption {
	return func(d *Docker) {
		d.logger = logger
	}
}

// NewDocker connects to the engine named by the ambient DOCKER_HOST
// configuration. registryHost is the staging registry's host:port, used
// to build registry-qualified image names.
func NewDocker(registryHost string, opts ...DockerOption) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d := &Docker{api: cli, host: registryHost}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (d *Docker) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

// Available reports whether the engine socket answers.
func (d *Docker) Available(ctx context.Context) bool {
	_, err := d.api.Ping(ctx)
	return err == nil
}

// Close releases the engine connection.
func (d *Docker) Close() error {
	return d.api.Close()
}

// stagedRef builds the registry-qualified image name for ref.
func (d *Docker) stagedRef(ref registry.Reference) string {
	return d.host + "/" + ref.String()
}

// Push stages localRef into the registry: tag with the registry-qualified
// name, then push. The engine reports push failures inside the progress
// stream, not in the response status, so the stream is drained fully.
func (d *Docker) Push(ctx context.Context, localRef string, ref registry.Reference) error {
	staged := d.stagedRef(ref)

	if err := d.api.ImageTag(ctx, localRef, staged); err != nil {
		return fmt.Errorf("tag %s as %s: %w", localRef, staged, err)
	}

	rc, err := d.api.ImagePush(ctx, staged, image.PushOptions{RegistryAuth: anonymousAuth()})
	if err != nil {
		return fmt.Errorf("push %s: %w", staged, err)
	}
	defer rc.Close()

	if err := drainMessages(rc); err != nil {
		return fmt.Errorf("push %s: %w", staged, err)
	}

	d.log().Debug("pushed image", "local", localRef, "staged", staged)
	return nil
}

// Pull retrieves ref from the registry and, when localRef is non-empty,
// names the image localRef so it looks like a locally built image again.
func (d *Docker) Pull(ctx context.Context, ref registry.Reference, localRef string) error {
	staged := d.stagedRef(ref)

	rc, err := d.api.ImagePull(ctx, staged, image.PullOptions{RegistryAuth: anonymousAuth()})
	if err != nil {
		return fmt.Errorf("pull %s: %w", staged, err)
	}
	defer rc.Close()

	if err := drainMessages(rc); err != nil {
		return fmt.Errorf("pull %s: %w", staged, err)
	}

	if localRef != "" && localRef != staged {
		if err := d.api.ImageTag(ctx, staged, localRef); err != nil {
			return fmt.Errorf("tag %s as %s: %w", staged, localRef, err)
		}
	}

	d.log().Debug("pulled image", "staged", staged, "local", localRef)
	return nil
}

// Restart restarts the named container.
func (d *Docker) Restart(ctx context.Context, containerName string) error {
	timeout := int(restartTimeout.Seconds())
	if err := d.api.ContainerRestart(ctx, containerName, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("restart %s: %w", containerName, err)
	}
	d.log().Debug("restarted container", "container", containerName)
	return nil
}

// GarbageCollect runs the registry's garbage collector inside the named
// container and waits for it to finish.
func (d *Docker) GarbageCollect(ctx context.Context, containerName string) error {
	create, err := d.api.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		Cmd:          gcCommand,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("garbage-collect in %s: %w", containerName, err)
	}

	hijack, err := d.api.ContainerExecAttach(ctx, create.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("garbage-collect in %s: attach: %w", containerName, err)
	}
	defer hijack.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, hijack.Reader); err != nil {
		return fmt.Errorf("garbage-collect in %s: read output: %w", containerName, err)
	}

	inspect, err := d.waitExec(ctx, create.ID)
	if err != nil {
		return fmt.Errorf("garbage-collect in %s: %w", containerName, err)
	}
	if inspect.ExitCode != 0 {
		return fmt.Errorf("garbage-collect in %s: exit code %d: %s",
			containerName, inspect.ExitCode, strings.TrimSpace(stderr.String()))
	}

	d.log().Debug("garbage collection complete",
		"container", containerName,
		"output_bytes", stdout.Len())
	return nil
}

// waitExec polls until the exec process has exited. The output stream
// closing slightly precedes the daemon recording the exit code.
func (d *Docker) waitExec(ctx context.Context, execID string) (container.ExecInspect, error) {
	for {
		inspect, err := d.api.ContainerExecInspect(ctx, execID)
		if err != nil {
			return container.ExecInspect{}, err
		}
		if !inspect.Running {
			return inspect, nil
		}
		select {
		case <-ctx.Done():
			return container.ExecInspect{}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// anonymousAuth is the empty auth config the engine API expects for
// registries that require no credentials.
func anonymousAuth() string {
	return base64.URLEncoding.EncodeToString([]byte("{}"))
}

// drainMessages consumes an engine progress stream and surfaces the
// error message embedded in it, if any.
func drainMessages(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode progress stream: %w", err)
		}
		if msg.Error != nil {
			return errors.New(msg.Error.Message)
		}
	}
}
