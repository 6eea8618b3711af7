package archive

import "errors"

// ErrFormat is returned when an archive is structurally invalid: missing
// or inconsistent metadata, blob content that does not hash to its path,
// or entries outside the expected tree.
var ErrFormat = errors.New("archive: invalid delta archive")
