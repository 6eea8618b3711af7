package engine

import "errors"

// ErrUnavailable is returned when no backend can perform the requested
// operation: the engine socket does not answer and no copy tool is
// installed.
var ErrUnavailable = errors.New("engine: backend unavailable")
