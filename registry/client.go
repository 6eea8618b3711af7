package registry

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/opencontainers/go-digest"
)

const (
	defaultUserAgent  = "regdelta"
	defaultMaxRetries = 4
)

// Client talks to a single registry endpoint over the HTTP API V2.
type Client struct {
	base       *url.URL
	baseStr    string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	maxRetries uint64
}

// New creates a client for the registry at baseURL, e.g.
// "http://localhost:5000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("registry: parse base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("registry: base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("registry: base URL %q: missing host", baseURL)
	}

	c := &Client{
		base:       u,
		baseStr:    u.String(),
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

// Host returns the registry's host:port, the prefix engine-side image
// names are staged under.
func (c *Client) Host() string {
	return c.base.Host
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// endpoint builds an API URL under the /v2/ root.
func (c *Client) endpoint(format string, args ...any) string {
	return c.baseStr + "/v2/" + fmt.Sprintf(format, args...)
}

// do sends a single request with the client's User-Agent. Callers own the
// response body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return c.httpClient.Do(req)
}

// short truncates a digest for log output.
func short(d digest.Digest) string {
	s := d.String()
	return s[:min(16, len(s))]
}
