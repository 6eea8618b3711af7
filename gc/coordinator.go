package gc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/regdelta/registry"
)

const (
	defaultReadyTimeout  = 30 * time.Second
	defaultReadyInterval = 250 * time.Millisecond
)

// registryAPI is the slice of the registry client the coordinator uses.
type registryAPI interface {
	ManifestDigest(ctx context.Context, ref registry.Reference) (digest.Digest, error)
	DeleteManifest(ctx context.Context, repo string, dgst digest.Digest) error
	Ping(ctx context.Context) error
}

// containerRuntime is the slice of the engine runtime the coordinator
// uses.
type containerRuntime interface {
	Restart(ctx context.Context, container string) error
	GarbageCollect(ctx context.Context, container string) error
}

// Coordinator sequences manifest deletion, storage reclamation, and the
// restart that clears the registry's in-memory caches.
type Coordinator struct {
	api       registryAPI
	runtime   containerRuntime
	container string
	logger    *slog.Logger

	readyTimeout  time.Duration
	readyInterval time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a logger for the coordinator.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithReadyTimeout bounds how long Delete and Invalidate wait for the
// registry to answer again after a restart.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.readyTimeout = d
	}
}

// New creates a Coordinator for the named registry container.
func New(api registryAPI, runtime containerRuntime, container string, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:           api,
		runtime:       runtime,
		container:     container,
		readyTimeout:  defaultReadyTimeout,
		readyInterval: defaultReadyInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Coordinator) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Delete removes ref's manifest, reclaims the blobs it referenced, and
// restarts the registry so its caches match storage again. Blobs shared
// with other tags survive the collection pass.
func (c *Coordinator) Delete(ctx context.Context, ref registry.Reference) error {
	// Step 1: Resolve the tag to its manifest digest.
	dgst, err := c.api.ManifestDigest(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ref, err)
	}

	// Step 2: Delete the manifest by digest.
	if err := c.api.DeleteManifest(ctx, ref.Repository, dgst); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	c.log().Info("deleted manifest", "ref", ref.String(), "digest", dgst.String())

	// Step 3: Reclaim unreferenced blobs.
	if err := c.runtime.GarbageCollect(ctx, c.container); err != nil {
		return fmt.Errorf("reclaim storage after deleting %s: %w", ref, err)
	}

	// Step 4: Restart so in-memory blob metadata matches storage.
	return c.Invalidate(ctx)
}

// Invalidate restarts the registry container and waits for it to answer
// again. Required after writes that bypass the API.
func (c *Coordinator) Invalidate(ctx context.Context) error {
	if err := c.runtime.Restart(ctx, c.container); err != nil {
		return fmt.Errorf("restart %s: %w", c.container, err)
	}
	if err := c.awaitReady(ctx); err != nil {
		return err
	}
	c.log().Info("registry restarted", "container", c.container)
	return nil
}

// awaitReady polls the registry's version endpoint until it answers or
// the ready timeout elapses.
func (c *Coordinator) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(c.readyTimeout)

	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = c.api.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrRegistryState, ctx.Err())
		case <-time.After(c.readyInterval):
		}
	}
	return fmt.Errorf("%w: not serving after %s: %w", ErrRegistryState, c.readyTimeout, lastErr)
}
