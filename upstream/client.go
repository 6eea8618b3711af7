package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const defaultUserAgent = "regdelta"

// Client fetches manifests and blobs from an upstream registry.
type Client struct {
	plainHTTP bool
	userAgent string
	anonymous bool
	credStore credentials.Store
	logger    *slog.Logger

	// authClient is shared across repositories so bearer tokens are
	// exchanged once per registry, not once per request.
	authClient *auth.Client
}

// New creates an upstream client with the given options.
func New(opts ...Option) *Client {
	c := &Client{userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(c)
	}

	c.authClient = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if c.anonymous || c.credStore == nil {
				return auth.EmptyCredential, nil
			}
			return c.credStore.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{c.userAgent},
		},
	}

	return c
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// repository creates a Repository for the given full reference. The
// shared auth client carries tokens across calls.
func (c *Client) repository(ref string) (*remote.Repository, error) {
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	repo.PlainHTTP = c.plainHTTP
	repo.Client = c.authClient

	return repo, nil
}
