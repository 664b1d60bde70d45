package planner

import (
	"context"
	"fmt"

	"github.com/varyops/vary/internal/repo"
)

const (
	// MaxContextFiles caps the server-driven context read.
	MaxContextFiles = 8
	// contextFileMaxChars bounds each individual read.
	contextFileMaxChars = 6000
)

// FileResult records one context-read outcome. Err is set instead of
// aborting the batch when a single file fails.
type FileResult struct {
	Path      string
	Content   string
	Truncated bool
	Err       string
}

// ReadContext deterministically fetches the plan's files: dedup, filter to
// paths present in the cached tree, cap the count, bound each read. No model
// involvement and no retries beyond what the accessor itself performs.
func ReadContext(ctx context.Context, acc repo.Accessor, branch string, plan Plan) ([]FileResult, error) {
	tree, err := acc.Tree(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}
	present := make(map[string]bool, len(tree))
	for _, p := range tree {
		present[p] = true
	}

	seen := make(map[string]bool)
	var paths []string
	for _, p := range append(append([]string(nil), plan.FilesToRead...), plan.IntegrationTarget) {
		p = repo.CleanPath(p)
		if p == "" || seen[p] || !present[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
		if len(paths) == MaxContextFiles {
			break
		}
	}

	results := make([]FileResult, 0, len(paths))
	for _, p := range paths {
		content, truncated, err := acc.ReadFile(ctx, branch, p, contextFileMaxChars)
		if err != nil {
			results = append(results, FileResult{Path: p, Err: err.Error()})
			continue
		}
		results = append(results, FileResult{Path: p, Content: content, Truncated: truncated})
	}
	return results, nil
}

// ContentsMap flattens successful reads into a path → content map.
func ContentsMap(results []FileResult) map[string]string {
	m := make(map[string]string, len(results))
	for _, r := range results {
		if r.Err == "" {
			m[r.Path] = r.Content
		}
	}
	return m
}
