package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/opencontainers/go-digest"
)

// FetchManifest retrieves and parses the manifest for ref.
//
// The request offers only single-image media types; a registry that
// answers with a list or index anyway fails with
// [ErrUnsupportedManifestKind]. The digest is computed from the response
// body, never trusted from headers. A Docker-Content-Digest header that
// disagrees with the body is an [ErrIntegrity].
func (c *Client) FetchManifest(ctx context.Context, ref Reference) (*Manifest, error) {
	u := c.endpoint("%s/manifests/%s", ref.Repository, ref.Tag)
	header := http.Header{"Accept": []string{manifestAccept}}

	resp, err := c.doIdempotent(ctx, http.MethodGet, u, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, ref)
	default:
		return nil, fmt.Errorf("%w: GET manifest %s: status %d", ErrProtocol, ref, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest %s: %v", ErrProtocol, ref, err)
	}

	m, err := ParseManifest(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", ref, err)
	}

	if hdr := resp.Header.Get("Docker-Content-Digest"); hdr != "" && hdr != m.Digest.String() {
		return nil, fmt.Errorf("%w: manifest %s: registry reports %s, body hashes to %s", ErrIntegrity, ref, hdr, m.Digest)
	}

	c.log().Debug("fetched manifest",
		"ref", ref.String(),
		"digest", short(m.Digest),
		"layers", len(m.Layers))
	return m, nil
}

// ManifestDigest resolves ref to its manifest digest with a HEAD request.
func (c *Client) ManifestDigest(ctx context.Context, ref Reference) (digest.Digest, error) {
	u := c.endpoint("%s/manifests/%s", ref.Repository, ref.Tag)
	header := http.Header{"Accept": []string{manifestAccept}}

	resp, err := c.doIdempotent(ctx, http.MethodHead, u, header)
	if err != nil {
		return "", err
	}
	discard(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrManifestNotFound, ref)
	default:
		return "", fmt.Errorf("%w: HEAD manifest %s: status %d", ErrProtocol, ref, resp.StatusCode)
	}

	hdr := resp.Header.Get("Docker-Content-Digest")
	if hdr == "" {
		return "", fmt.Errorf("%w: HEAD manifest %s: no Docker-Content-Digest header", ErrProtocol, ref)
	}
	dgst, err := digest.Parse(hdr)
	if err != nil {
		return "", fmt.Errorf("%w: HEAD manifest %s: bad digest %q", ErrProtocol, ref, hdr)
	}
	return dgst, nil
}

// Ping checks the registry's version endpoint with a single attempt, no
// retries. Readiness loops build their own schedule around it.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseStr+"/v2/", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	discard(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping: status %d", ErrProtocol, resp.StatusCode)
	}
	return nil
}
