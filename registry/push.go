package registry

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/opencontainers/go-digest"
)

// PutManifest uploads raw manifest bytes under ref's tag.
//
// The bytes and media type must be exactly what was originally fetched so
// the stored digest matches the source registry's. Every referenced blob
// must already exist or the registry rejects the manifest.
func (c *Client) PutManifest(ctx context.Context, ref Reference, mediaType string, raw []byte) (digest.Digest, error) {
	u := c.endpoint("%s/manifests/%s", ref.Repository, ref.Tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mediaType)

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("put manifest %s: %w", ref, err)
	}
	discard(resp)

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: PUT manifest %s: status %d", ErrProtocol, ref, resp.StatusCode)
	}

	dgst := digest.FromBytes(raw)
	if hdr := resp.Header.Get("Docker-Content-Digest"); hdr != "" && hdr != dgst.String() {
		return "", fmt.Errorf("%w: manifest %s: sent %s, registry stored %s", ErrIntegrity, ref, dgst, hdr)
	}

	c.log().Debug("put manifest", "ref", ref.String(), "digest", short(dgst))
	return dgst, nil
}
