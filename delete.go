package regdelta

import (
	"context"
	"fmt"

	"github.com/meigma/regdelta/registry"
)

// Delete removes a staged tag, reclaims its now-unreferenced blobs, and
// restarts the registry so its caches match storage again. Blobs still
// referenced by other tags survive.
//
// The sequence needs control over the registry's container; without an
// engine backend Delete fails with [ErrBackendUnavailable]. Concurrent
// pushes against the same registry during the delete window are the
// caller's responsibility to avoid.
func (c *Client) Delete(ctx context.Context, refStr string) error {
	ref, err := registry.ParseReference(refStr)
	if err != nil {
		return err
	}

	if c.coord == nil {
		return fmt.Errorf("%w: deleting needs the registry container for garbage collection and restart", ErrBackendUnavailable)
	}

	return c.coord.Delete(ctx, ref)
}
