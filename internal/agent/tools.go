package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/varyops/vary/internal/llm"
	"github.com/varyops/vary/internal/repo"
)

const (
	toolStageFile      = "stage_file"
	toolFlushWrites    = "flush_writes"
	toolCompareChanges = "compare_changes"

	// compare_changes file lists are capped before serialization so one
	// huge diff cannot dominate the transcript.
	maxDiffFileEntries = 80
)

// writeTools returns the tool definitions offered to the model on every
// turn of the write loop.
func writeTools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        toolStageFile,
			Description: "Stage the complete content of one file for the next commit. Overwrites any previously staged content for the same path. Paths are repository-relative; parent traversal is rejected.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Repository-relative file path, e.g. src/experiments/useExperiment.ts",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full desired content of the file",
				},
			},
			Required: []string{"path", "content"},
		},
		{
			Name:        toolFlushWrites,
			Description: "Commit every staged file to the working branch as a single commit and clear the staged set. A no-op when nothing is staged.",
			Properties: map[string]any{
				"commit_message": map[string]any{
					"type":        "string",
					"description": "Commit message for the flush",
				},
			},
			Required: []string{},
		},
		{
			Name:        toolCompareChanges,
			Description: "Compare the working branch against the base branch and return the list of changed files. Reflects only flushed commits, not staged files.",
			Properties:  map[string]any{},
			Required:    []string{},
		},
	}
}

// toolbox executes tool invocations against the repository and staged set.
// Execution failures are reported inside the result payload, never as Go
// errors, so the model can observe and recover from them.
type toolbox struct {
	acc    repo.Accessor
	staged *StagedWrites
	branch string
	base   string

	// committed accumulates files landed across every flush in the run,
	// including auto-flushes and the safety flush.
	committed int
}

func (tb *toolbox) execute(ctx context.Context, name string, input json.RawMessage) map[string]any {
	switch name {
	case toolStageFile:
		return tb.stageFile(input)
	case toolFlushWrites:
		return tb.flushWrites(ctx, input)
	case toolCompareChanges:
		return tb.compareChanges(ctx)
	default:
		return map[string]any{"ok": false, "error": fmt.Sprintf("unknown tool: %s", name)}
	}
}

func (tb *toolbox) stageFile(input json.RawMessage) map[string]any {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return map[string]any{"ok": false, "error": fmt.Sprintf("invalid stage_file arguments: %v", err)}
	}
	path := repo.CleanPath(args.Path)
	if err := tb.staged.Stage(path, args.Content); err != nil {
		return map[string]any{"ok": false, "error": err.Error(), "path": path}
	}
	return map[string]any{
		"ok":           true,
		"path":         path,
		"staged":       true,
		"total_staged": tb.staged.Len(),
	}
}

func (tb *toolbox) flushWrites(ctx context.Context, input json.RawMessage) map[string]any {
	var args struct {
		CommitMessage string `json:"commit_message"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return map[string]any{"ok": false, "error": fmt.Sprintf("invalid flush_writes arguments: %v", err)}
		}
	}
	message := args.CommitMessage
	if message == "" {
		message = "Implement experiment changes"
	}
	count, err := tb.staged.Flush(ctx, tb.acc, tb.branch, message)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	tb.committed += count
	return map[string]any{"ok": true, "committed_files": count}
}

func (tb *toolbox) compareChanges(ctx context.Context) map[string]any {
	comp, err := tb.acc.Diff(ctx, tb.base, tb.branch)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	files := comp.Files
	truncated := false
	if len(files) > maxDiffFileEntries {
		files = files[:maxDiffFileEntries]
		truncated = true
	}
	entries := make([]map[string]any, 0, len(files))
	for _, f := range files {
		entries = append(entries, map[string]any{
			"path":      f.Path,
			"status":    f.Status,
			"additions": f.Additions,
			"deletions": f.Deletions,
		})
	}
	result := map[string]any{
		"ok":          true,
		"total_files": comp.TotalFiles,
		"ahead_by":    comp.AheadBy,
		"files":       entries,
	}
	if truncated {
		result["files_truncated"] = true
	}
	return result
}

// compactToolResult serializes a tool result, replacing oversized payloads
// with a flagged preview so a single result can never blow the transcript.
func compactToolResult(name string, result map[string]any, maxChars int) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"error":"unserializable %s result"}`, name)
	}
	if len(raw) <= maxChars {
		return string(raw)
	}
	budget := maxChars - 120 // room for the wrapper object
	if budget < 0 {
		budget = 0
	}
	preview, _, _ := repo.Truncate(string(raw), budget)
	compact, err := json.Marshal(map[string]any{
		"ok":        result["ok"],
		"tool":      name,
		"truncated": true,
		"preview":   preview,
	})
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"tool":%q,"truncated":true}`, name)
	}
	return string(compact)
}
