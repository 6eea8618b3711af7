package regdelta

import (
	"context"
	"fmt"

	"github.com/meigma/regdelta/registry"
)

// Pull retrieves staged images into the local image store, restoring
// each one's original name.
//
// Pull needs an engine or copy-tool backend; API-direct clients get
// [ErrBackendUnavailable].
func (c *Client) Pull(ctx context.Context, refs ...string) error {
	if c.transport == nil {
		return fmt.Errorf("%w: pulling images locally needs a container engine or copy tool", ErrBackendUnavailable)
	}

	for _, raw := range refs {
		ref, err := registry.ParseReference(raw)
		if err != nil {
			return err
		}
		if err := c.transport.Pull(ctx, ref, raw); err != nil {
			return fmt.Errorf("pull %s: %w", raw, err)
		}
		c.log().Info("pulled image", "ref", ref.String(), "local", raw)
	}
	return nil
}
