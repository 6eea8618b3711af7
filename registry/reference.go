package registry

import (
	"fmt"
	"strings"
)

// DefaultTag is applied to references that carry no tag.
const DefaultTag = "latest"

// Reference locates an image inside the staging registry.
//
// Repository is always a single path component: slashes in the source name
// are flattened to dashes at parse time, so "team/app:v1" and "team-app:v1"
// address the same repository. The flattening is lossy and collisions are
// possible; callers that control naming should avoid dashes at slash
// boundaries.
type Reference struct {
	// Repository is the flattened repository name.
	Repository string

	// Tag is the tag portion, never empty.
	Tag string
}

// ParseReference parses an image reference of the form "name[:tag]".
//
// The tag is split on the last colon; a missing tag defaults to
// [DefaultTag]. Digest references ("name@sha256:...") are not accepted:
// delta operations address images by tag and resolve digests themselves.
func ParseReference(s string) (Reference, error) {
	if strings.Contains(s, "@") {
		return Reference{}, fmt.Errorf("%w: digest references are not supported: %q", ErrInvalidReference, s)
	}

	name, tag := s, DefaultTag
	if i := strings.LastIndex(s, ":"); i >= 0 {
		name, tag = s[:i], s[i+1:]
	}
	if name == "" {
		return Reference{}, fmt.Errorf("%w: empty repository: %q", ErrInvalidReference, s)
	}
	if tag == "" {
		return Reference{}, fmt.Errorf("%w: empty tag: %q", ErrInvalidReference, s)
	}

	repo := flattenRepository(name)
	if strings.HasPrefix(repo, "-") || strings.HasSuffix(repo, "-") {
		return Reference{}, fmt.Errorf("%w: repository %q", ErrInvalidReference, name)
	}

	return Reference{Repository: repo, Tag: tag}, nil
}

// flattenRepository maps multi-component names onto the registry's flat
// namespace. "team/app" becomes "team-app".
func flattenRepository(name string) string {
	return strings.ReplaceAll(name, "/", "-")
}

// String returns the canonical "repository:tag" form.
func (r Reference) String() string {
	return r.Repository + ":" + r.Tag
}

// ArchiveName returns the delta archive file name for this reference,
// "<repository>-<tag>.tar.gz".
func (r Reference) ArchiveName() string {
	return r.Repository + "-" + r.Tag + ".tar.gz"
}
