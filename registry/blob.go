package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/opencontainers/go-digest"
)

// BlobExists reports whether repo holds a blob with the given digest.
func (c *Client) BlobExists(ctx context.Context, repo string, dgst digest.Digest) (bool, error) {
	u := c.endpoint("%s/blobs/%s", repo, dgst)

	resp, err := c.doIdempotent(ctx, http.MethodHead, u, nil)
	if err != nil {
		return false, err
	}
	discard(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: HEAD blob %s@%s: status %d", ErrProtocol, repo, short(dgst), resp.StatusCode)
	}
}

// FetchBlob downloads a blob and verifies the content against dgst.
// A mismatch is an [ErrIntegrity] and the content is discarded.
func (c *Client) FetchBlob(ctx context.Context, repo string, dgst digest.Digest) ([]byte, error) {
	u := c.endpoint("%s/blobs/%s", repo, dgst)

	resp, err := c.doIdempotent(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET blob %s@%s: status %d", ErrProtocol, repo, short(dgst), resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s@%s: %v", ErrProtocol, repo, short(dgst), err)
	}
	if got := digest.FromBytes(data); got != dgst {
		return nil, fmt.Errorf("%w: blob %s: expected %s, got %s", ErrIntegrity, repo, dgst, got)
	}

	c.log().Debug("fetched blob", "repo", repo, "digest", short(dgst), "size", len(data))
	return data, nil
}

// PushBlob uploads a blob through a monolithic upload session. Blobs the
// registry already holds are skipped without reading r.
//
// Uploads are writes and are never retried; a failed session is abandoned
// and surfaces as an error.
func (c *Client) PushBlob(ctx context.Context, repo string, dgst digest.Digest, size int64, r io.Reader) error {
	exists, err := c.BlobExists(ctx, repo, dgst)
	if err != nil {
		return err
	}
	if exists {
		c.log().Debug("blob exists, skipping upload", "repo", repo, "digest", short(dgst))
		return nil
	}

	// Step 1: open an upload session.
	loc, err := c.startUpload(ctx, repo)
	if err != nil {
		return err
	}

	// Step 2: monolithic PUT, completing the session with the digest.
	q := loc.Query()
	q.Set("digest", dgst.String())
	loc.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, loc.String(), r)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("upload blob %s@%s: %w", repo, short(dgst), err)
	}
	discard(resp)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: complete upload %s@%s: status %d", ErrProtocol, repo, short(dgst), resp.StatusCode)
	}

	// Step 3: the registry echoes the digest it stored; a difference means
	// the content was corrupted in transit.
	if hdr := resp.Header.Get("Docker-Content-Digest"); hdr != "" && hdr != dgst.String() {
		return fmt.Errorf("%w: upload %s: sent %s, registry stored %s", ErrIntegrity, repo, dgst, hdr)
	}

	c.log().Debug("pushed blob", "repo", repo, "digest", short(dgst), "size", size)
	return nil
}

// startUpload opens a blob upload session and returns the absolute session
// URL from the Location header.
func (c *Client) startUpload(ctx context.Context, repo string) (*url.URL, error) {
	u := c.endpoint("%s/blobs/uploads/", repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("start upload %s: %w", repo, err)
	}
	discard(resp)

	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("%w: start upload %s: status %d", ErrProtocol, repo, resp.StatusCode)
	}
	locHdr := resp.Header.Get("Location")
	if locHdr == "" {
		return nil, fmt.Errorf("%w: start upload %s: no Location header", ErrProtocol, repo)
	}
	loc, err := url.Parse(locHdr)
	if err != nil {
		return nil, fmt.Errorf("%w: start upload %s: bad Location %q", ErrProtocol, repo, locHdr)
	}
	return c.base.ResolveReference(loc), nil
}
