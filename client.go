package regdelta

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meigma/regdelta/config"
	"github.com/meigma/regdelta/engine"
	"github.com/meigma/regdelta/gc"
	"github.com/meigma/regdelta/layout"
	"github.com/meigma/regdelta/registry"
	"github.com/meigma/regdelta/upstream"
)

// detectTimeout bounds the engine availability probe during New.
const detectTimeout = 2 * time.Second

// Client is the entry point for delta operations against one staging
// registry.
//
// A Client binds together the registry API client, an optional
// engine/copy-tool backend for moving images in and out of the local
// image store, an optional filesystem-direct path into the registry's
// storage, and the consistency coordinator that keeps the registry
// honest after deletes and out-of-band writes.
type Client struct {
	cfg        config.Config
	logger     *slog.Logger
	httpClient *http.Client

	reg       *registry.Client
	transport engine.Transport
	runtime   engine.Runtime
	store     *layout.Store
	coord     *gc.Coordinator
	up        *upstream.Client

	// engineSet suppresses backend auto-detection when a backend was
	// injected (or explicitly disabled) through options.
	engineSet bool

	// owned is closed by Close; only backends this client created.
	owned io.Closer
}

// New creates a Client with the given options.
//
// Unless an engine is injected with [WithEngine], New probes for a
// usable backend: the container engine first, then skopeo, and finally
// none (API-direct operation, where push and pull of engine-held images
// are unavailable).
func New(opts ...Option) (*Client, error) {
	c := &Client{cfg: config.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.cfg.Workers < 1 {
		c.cfg.Workers = config.DefaultWorkers
	}

	// Step 1: registry API client.
	if c.reg == nil {
		var regOpts []registry.Option
		if c.httpClient != nil {
			regOpts = append(regOpts, registry.WithHTTPClient(c.httpClient))
		}
		if c.logger != nil {
			regOpts = append(regOpts, registry.WithLogger(c.logger))
		}
		reg, err := registry.New(c.cfg.RegistryURL, regOpts...)
		if err != nil {
			return nil, err
		}
		c.reg = reg
	}

	// Step 2: engine or copy-tool backend.
	if !c.engineSet {
		if err := c.detectBackend(); err != nil {
			return nil, err
		}
	}

	// Step 3: filesystem-direct store when the storage root is mounted
	// here and API-only operation was not forced.
	if c.cfg.StorageRoot != "" && !c.cfg.ForceAPI {
		store, err := layout.NewStore(c.cfg.StorageRoot, layout.WithStoreLogger(c.logger))
		if err != nil {
			return nil, fmt.Errorf("storage root: %w", err)
		}
		c.store = store
	}

	// Step 4: consistency coordinator, when the container is reachable.
	if c.runtime != nil {
		c.coord = gc.New(c.reg, c.runtime, c.cfg.Container, gc.WithLogger(c.logger))
	}

	// Step 5: default upstream fetcher for seeding.
	if c.up == nil {
		c.up = upstream.New(upstream.WithAnonymous(), upstream.WithLogger(c.logger))
	}

	return c, nil
}

// detectBackend picks a transport. A copy tool named in the
// configuration is binding; otherwise the engine is probed and skopeo is
// the fallback. Ending up with no backend is not an error, it just
// narrows the operations available.
func (c *Client) detectBackend() error {
	host := c.reg.Host()

	if c.cfg.CopyTool != "" {
		ct, err := engine.NewCopyTool(c.cfg.CopyTool, host, engine.WithCopyToolLogger(c.logger))
		if err != nil {
			return fmt.Errorf("forced copy tool %q: %w", c.cfg.CopyTool, err)
		}
		c.transport = ct
		c.log().Debug("using copy tool backend", "tool", c.cfg.CopyTool)
		return nil
	}

	if d, err := engine.NewDocker(host, engine.WithDockerLogger(c.logger)); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
		defer cancel()
		if d.Available(ctx) {
			c.transport = d
			c.runtime = d
			c.owned = d
			c.log().Debug("using container engine backend")
			return nil
		}
		_ = d.Close()
	}

	if ct, err := engine.NewCopyTool("skopeo", host, engine.WithCopyToolLogger(c.logger)); err == nil {
		c.transport = ct
		c.log().Debug("using copy tool backend", "tool", "skopeo")
		return nil
	}

	c.log().Debug("no engine backend available, API-direct only")
	return nil
}

// Close releases any backend connection the client created itself.
func (c *Client) Close() error {
	if c.owned == nil {
		return nil
	}
	owned := c.owned
	c.owned = nil
	return owned.Close()
}

// Registry exposes the underlying registry API client.
func (c *Client) Registry() *registry.Client {
	return c.reg
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
