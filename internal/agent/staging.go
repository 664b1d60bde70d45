package agent

import (
	"context"

	"github.com/varyops/vary/internal/repo"
)

// StagedWrites is the in-memory path → content set awaiting the next flush.
// Unsafe paths are never admitted. The set lives for one run only.
type StagedWrites struct {
	files map[string]string
}

// NewStagedWrites returns an empty staged set.
func NewStagedWrites() *StagedWrites {
	return &StagedWrites{files: make(map[string]string)}
}

// Stage records a complete file content for path, replacing any previous
// staged content. The path must already be cleaned; validation happens here.
func (s *StagedWrites) Stage(path, content string) error {
	if err := repo.ValidatePath(path); err != nil {
		return err
	}
	s.files[path] = content
	return nil
}

// Get returns staged content for path, letting reads observe writes that
// have not been flushed yet.
func (s *StagedWrites) Get(path string) (string, bool) {
	content, ok := s.files[path]
	return content, ok
}

// Len returns the number of staged files.
func (s *StagedWrites) Len() int {
	return len(s.files)
}

// Files returns a copy of the staged set.
func (s *StagedWrites) Files() map[string]string {
	out := make(map[string]string, len(s.files))
	for path, content := range s.files {
		out[path] = content
	}
	return out
}

// Clear empties the staged set.
func (s *StagedWrites) Clear() {
	s.files = make(map[string]string)
}

// Flush commits every staged file as one atomic commit on branch and clears
// the set. An empty set performs no network mutation. Returns the number of
// files committed.
func (s *StagedWrites) Flush(ctx context.Context, acc repo.Accessor, branch, message string) (int, error) {
	if len(s.files) == 0 {
		return 0, nil
	}
	if _, err := acc.CommitFiles(ctx, branch, message, s.Files()); err != nil {
		return 0, err
	}
	count := len(s.files)
	s.Clear()
	return count, nil
}
