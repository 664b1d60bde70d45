package integrate

import "fmt"

// MinChangedFiles is the smallest changed-file count accepted as a real
// integration for an experiment with the given segment count. The floor is
// 2 (one new file plus the wired entry point) and the ceiling is 6.
func MinChangedFiles(segments int) int {
	n := segments + 1
	if n > 6 {
		n = 6
	}
	if n < 2 {
		n = 2
	}
	return n
}

// InsufficientChangesError reports a run whose branch diff is too small to
// be a plausible integration. The run fails rather than opening a pull
// request around an empty change.
type InsufficientChangesError struct {
	Changed  int
	Required int
}

func (e *InsufficientChangesError) Error() string {
	return fmt.Sprintf("integration changed %d file(s), need at least %d", e.Changed, e.Required)
}
