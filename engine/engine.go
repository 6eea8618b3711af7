package engine

import (
	"context"

	"github.com/meigma/regdelta/registry"
)

// Transport moves images between the local image store and the staging
// registry.
type Transport interface {
	// Push stages the local image localRef into the registry under ref.
	Push(ctx context.Context, localRef string, ref registry.Reference) error

	// Pull retrieves ref from the registry and names it localRef in the
	// local image store.
	Pull(ctx context.Context, ref registry.Reference, localRef string) error
}

// Runtime controls the registry's container. The consistency step after
// deletes and out-of-band storage writes depends on it.
type Runtime interface {
	// Restart restarts the named container.
	Restart(ctx context.Context, container string) error

	// GarbageCollect runs the registry's garbage collector inside the
	// named container.
	GarbageCollect(ctx context.Context, container string) error
}
