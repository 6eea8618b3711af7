package regdelta

import "github.com/meigma/regdelta/registry"

// Re-export core types for the public API.
type (
	// Reference names an image in the staging registry.
	Reference = registry.Reference

	// Manifest is a parsed single-image manifest with its exact bytes.
	Manifest = registry.Manifest
)

// DefaultTag is applied when a reference omits the tag.
const DefaultTag = registry.DefaultTag

// ParseReference parses "repo[:tag]", flattening any "/" in the
// repository to "-" and defaulting the tag to [DefaultTag].
func ParseReference(s string) (Reference, error) {
	return registry.ParseReference(s)
}
