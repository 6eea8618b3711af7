package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/opencontainers/go-digest"
)

// DeleteManifest removes the manifest with the given digest from repo.
// All tags pointing at the digest disappear with it; storage is reclaimed
// only by a subsequent garbage-collection pass.
func (c *Client) DeleteManifest(ctx context.Context, repo string, dgst digest.Digest) error {
	u := c.endpoint("%s/manifests/%s", repo, dgst)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("delete manifest %s@%s: %w", repo, short(dgst), err)
	}
	discard(resp)

	switch resp.StatusCode {
	case http.StatusAccepted:
		c.log().Debug("deleted manifest", "repo", repo, "digest", short(dgst))
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s@%s", ErrManifestNotFound, repo, short(dgst))
	case http.StatusMethodNotAllowed:
		return fmt.Errorf("%w: delete %s@%s: registry has deletion disabled (set REGISTRY_STORAGE_DELETE_ENABLED=true)", ErrProtocol, repo, short(dgst))
	default:
		return fmt.Errorf("%w: DELETE manifest %s@%s: status %d", ErrProtocol, repo, short(dgst), resp.StatusCode)
	}
}
