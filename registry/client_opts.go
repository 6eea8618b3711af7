package registry

import (
	"log/slog"
	"net/http"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The default client has no
// request timeout; cancellation is driven by the caller's context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a logger for the client.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header for registry requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxRetries bounds how many times idempotent requests are retried
// after the initial attempt. Zero disables retries entirely.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}
