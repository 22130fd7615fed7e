package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// ValidateID validates a workspace, story or record identifier for safety.
// Identifiers end up in URL path segments, cache keys and SQL parameters, so
// the rules reject anything that could be used for traversal or injection:
//   - No empty IDs
//   - No control characters or whitespace
//   - No path separators or traversal sequences
//   - Maximum length of 128 characters
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "id contains invalid characters: %q", id)
		}
	}

	for _, pattern := range []string{"..", "/", "\\"} {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidInput, "id contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateWorkspaceID is ValidateID reported with ErrCodeInvalidWorkspace.
func ValidateWorkspaceID(id string) error {
	if err := ValidateID(id); err != nil {
		return Wrap(ErrCodeInvalidWorkspace, err, "invalid workspace id")
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL parses and has a safe scheme (http or https) and a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL must have a host")
	}

	return nil
}

// organizationRegex matches Azure DevOps organization names.
var organizationRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,48}[A-Za-z0-9])?$`)

// ValidateOrganization validates an Azure DevOps organization name.
func ValidateOrganization(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "organization cannot be empty")
	}
	if !organizationRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid Azure DevOps organization: %q", name)
	}
	return nil
}

// pathSegmentForbidden lists characters Azure DevOps rejects in area and
// iteration node names.
const pathSegmentForbidden = `/:*?"<>|;#${},+=[]`

// ValidatePath validates an Azure DevOps classification path such as
// "Project\Team\Sprint 1" (area_path, iteration_path).
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4000 characters, 255 per node
//   - No control characters
//   - No empty nodes (leading, trailing or doubled backslashes)
//   - No reserved characters or "." / ".." node names
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4000
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	for _, node := range strings.Split(path, `\`) {
		switch {
		case node == "":
			return New(ErrCodeInvalidPath, "path %q contains an empty node", path)
		case node == "." || node == "..":
			return New(ErrCodeInvalidPath, "path cannot contain %q nodes", node)
		case len(node) > 255:
			return New(ErrCodeInvalidPath, "path node too long (max 255 characters)")
		case strings.ContainsAny(node, pathSegmentForbidden):
			return New(ErrCodeInvalidPath, "path node %q contains reserved characters", node)
		}
	}

	return nil
}
