package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/meigma/regdelta/registry"
)

// skopeoTool is the only external copy tool currently supported.
const skopeoTool = "skopeo"

// CopyTool moves images between the container engine and the registry by
// shelling out to an external copy program. It implements [Transport]
// only; runtime control still requires the engine API.
type CopyTool struct {
	tool   string
	host   string
	logger *slog.Logger

	// run is swapped in tests to capture the composed command line.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

var _ Transport = (*CopyTool)(nil)

// CopyToolOption configures a CopyTool.
type CopyToolOption func(*CopyTool)

// WithCopyToolLogger sets a logger for the copy tool.
// If nil, a discard logger is used (default behavior).
func WithCopyToolLogger(logger *slog.Logger) CopyToolOption {
	return func(c *CopyTool) {
		c.logger = logger
	}
}

// NewCopyTool returns a transport backed by the named copy program.
// registryHost is the staging registry's host:port. The tool must be one
// of the supported programs and present on PATH, otherwise
// [ErrUnavailable] is returned.
func NewCopyTool(tool, registryHost string, opts ...CopyToolOption) (*CopyTool, error) {
	if tool != skopeoTool {
		return nil, fmt.Errorf("%w: unsupported copy tool %q", ErrUnavailable, tool)
	}
	if _, err := exec.LookPath(tool); err != nil {
		return nil, fmt.Errorf("%w: %s not found on PATH", ErrUnavailable, tool)
	}

	c := &CopyTool{
		tool: tool,
		host: registryHost,
		run:  runCommand,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (c *CopyTool) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Push copies localRef from the engine's image store into the registry.
func (c *CopyTool) Push(ctx context.Context, localRef string, ref registry.Reference) error {
	src := "docker-daemon:" + localRef
	dst := "docker://" + c.host + "/" + ref.String()

	out, err := c.run(ctx, c.tool, "copy", "--dest-tls-verify=false", src, dst)
	if err != nil {
		return fmt.Errorf("%s copy %s to %s: %w: %s", c.tool, src, dst, err, tail(out))
	}

	c.log().Debug("copied image to registry", "tool", c.tool, "src", src, "dst", dst)
	return nil
}

// Pull copies ref from the registry into the engine's image store. When
// localRef is empty the registry-qualified name is kept.
func (c *CopyTool) Pull(ctx context.Context, ref registry.Reference, localRef string) error {
	if localRef == "" {
		localRef = c.host + "/" + ref.String()
	}
	src := "docker://" + c.host + "/" + ref.String()
	dst := "docker-daemon:" + localRef

	out, err := c.run(ctx, c.tool, "copy", "--src-tls-verify=false", src, dst)
	if err != nil {
		return fmt.Errorf("%s copy %s to %s: %w: %s", c.tool, src, dst, err, tail(out))
	}

	c.log().Debug("copied image from registry", "tool", c.tool, "src", src, "dst", dst)
	return nil
}

// runCommand executes the tool and returns its combined output.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// tail returns the last few lines of tool output for error messages.
func tail(out []byte) string {
	const maxLines = 3
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, " / ")
}
