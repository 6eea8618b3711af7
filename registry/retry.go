package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// doIdempotent sends a GET or HEAD request with bounded exponential
// backoff. Transport errors, 429 and 5xx responses are retried; everything
// else, including 404, is returned to the caller. Write verbs never go
// through here.
func (c *Client) doIdempotent(ctx context.Context, method, rawURL string, header http.Header) (*http.Response, error) {
	var resp *http.Response

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		r, err := c.do(req)
		if err != nil {
			c.log().Debug("request failed, retrying", "method", method, "url", rawURL, "error", err)
			return err
		}
		if retryableStatus(r.StatusCode) {
			discard(r)
			c.log().Debug("retryable status", "method", method, "url", rawURL, "status", r.StatusCode)
			return fmt.Errorf("%w: %s %s: status %d", ErrProtocol, method, rawURL, r.StatusCode)
		}
		resp = r
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return resp, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// discard drains and closes a response body so the connection can be
// reused.
func discard(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
}
