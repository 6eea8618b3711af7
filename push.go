package regdelta

import (
	"context"
	"fmt"

	"github.com/meigma/regdelta/registry"
)

// Push stages local images into the registry. Each reference keeps its
// engine-side name as the source and is staged under its flattened
// repository name.
//
// Push needs an engine or copy-tool backend; API-direct clients get
// [ErrBackendUnavailable].
func (c *Client) Push(ctx context.Context, refs ...string) error {
	if c.transport == nil {
		return fmt.Errorf("%w: pushing local images needs a container engine or copy tool", ErrBackendUnavailable)
	}

	for _, raw := range refs {
		ref, err := registry.ParseReference(raw)
		if err != nil {
			return err
		}
		if err := c.transport.Push(ctx, raw, ref); err != nil {
			return fmt.Errorf("push %s: %w", raw, err)
		}
		c.log().Info("staged image", "local", raw, "ref", ref.String())
	}
	return nil
}
