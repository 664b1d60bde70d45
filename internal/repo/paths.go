package repo

import (
	"fmt"
	"strings"
)

// CleanPath normalizes a model-supplied path before validation: surrounding
// whitespace and a leading slash are stripped, matching the lenient handling
// of tool inputs.
func CleanPath(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), "/")
}

// ValidatePath rejects empty paths, absolute paths, and any path containing
// a parent-directory segment. It runs before any network call.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		return fmt.Errorf("%w: %q is absolute", ErrUnsafePath, path)
	}
	for _, seg := range strings.Split(strings.ReplaceAll(path, "\\", "/"), "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q contains a parent segment", ErrUnsafePath, path)
		}
	}
	return nil
}
