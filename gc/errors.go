package gc

import "errors"

// ErrRegistryState is returned when the registry does not come back to a
// serving state after a restart, or answers inconsistently afterwards.
var ErrRegistryState = errors.New("gc: registry did not return to a consistent state")
