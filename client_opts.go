package regdelta

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/meigma/regdelta/config"
	"github.com/meigma/regdelta/engine"
	"github.com/meigma/regdelta/upstream"
)

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets a logger for the client and everything it constructs.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithConfig replaces the default configuration, usually with the result
// of [config.FromEnv].
func WithConfig(cfg config.Config) Option {
	return func(c *Client) error {
		c.cfg = cfg
		return nil
	}
}

// WithRegistry overrides the staging registry's base URL, e.g.
// "http://localhost:5010".
func WithRegistry(url string) Option {
	return func(c *Client) error {
		c.cfg.RegistryURL = url
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for registry API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithEngine injects a backend and skips auto-detection. Pass the same
// [engine.Docker] for both roles, or a transport with a nil runtime for
// tool-only setups. Both nil disables the backend entirely.
func WithEngine(transport engine.Transport, runtime engine.Runtime) Option {
	return func(c *Client) error {
		c.transport = transport
		c.runtime = runtime
		c.engineSet = true
		return nil
	}
}

// WithStorageRoot sets the registry storage directory for
// filesystem-direct restores.
func WithStorageRoot(root string) Option {
	return func(c *Client) error {
		c.cfg.StorageRoot = root
		return nil
	}
}

// WithForceAPI forces API-mediated restores even when the storage root
// is reachable.
func WithForceAPI(force bool) Option {
	return func(c *Client) error {
		c.cfg.ForceAPI = force
		return nil
	}
}

// WithCopyTool forces the named copy tool ("skopeo") as the transport
// instead of the container engine.
func WithCopyTool(tool string) Option {
	return func(c *Client) error {
		c.cfg.CopyTool = tool
		return nil
	}
}

// WithWorkers bounds parallel blob transfers.
func WithWorkers(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("regdelta: workers must be at least 1, got %d", n)
		}
		c.cfg.Workers = n
		return nil
	}
}

// WithUpstream sets the upstream client used by Seed, typically one
// built with credentials: upstream.New(upstream.WithDockerConfig()).
func WithUpstream(up *upstream.Client) Option {
	return func(c *Client) error {
		c.up = up
		return nil
	}
}
