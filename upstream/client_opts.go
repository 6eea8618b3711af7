package upstream

import (
	"log/slog"

	"oras.land/oras-go/v2/registry/remote/credentials"
)

// Option configures a Client.
type Option func(*Client)

// WithPlainHTTP enables plain HTTP (no TLS) for the upstream registry.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.plainHTTP = enabled
	}
}

// WithAnonymous disables all authentication, including credential store
// lookups. Use this for public registries.
func WithAnonymous() Option {
	return func(c *Client) {
		c.anonymous = true
	}
}

// WithCredentialStore sets the credential store for authentication.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.credStore = store
	}
}

// WithStaticCredentials sets a username/password credential for a single
// registry.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.credStore = StaticCredentials(registry, username, password)
	}
}

// WithDockerConfig enables reading credentials from ~/.docker/config.json.
// If the docker config cannot be loaded, the client falls back to no
// credentials.
func WithDockerConfig() Option {
	return func(c *Client) {
		store, err := DefaultCredentialStore()
		if err != nil {
			return
		}
		c.credStore = store
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets a logger for the client.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
