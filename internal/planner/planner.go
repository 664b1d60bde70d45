package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/varyops/vary/internal/llm"
)

// Plan names the existing files worth inspecting, the single file to modify
// for integration, and the new files to create.
type Plan struct {
	FilesToRead       []string `json:"files_to_read"`
	IntegrationTarget string   `json:"integration_target"`
	NewFiles          []string `json:"new_files"`
}

const (
	planMaxTokens = 1024
	treePreview   = 300
)

// entryPointCandidates are conventional integration points, in preference
// order, used both for the fallback plan and for mini-context selection.
var entryPointCandidates = []string{
	"app/layout.tsx", "app/layout.jsx", "app/layout.js",
	"app/page.tsx", "app/page.jsx",
	"src/App.tsx", "src/App.jsx", "src/App.js",
	"src/main.tsx", "src/main.jsx", "src/main.js",
	"pages/_app.tsx", "pages/_app.jsx",
	"src/routes.tsx", "src/router.tsx",
}

// fallbackNewFiles are the conventionally named files the fallback plan
// creates.
var fallbackNewFiles = []string{
	"src/experiments/ExperimentVariants.tsx",
	"src/experiments/useExperiment.ts",
	"src/experiments/tracking.ts",
}

// Completer is the completion-service dependency.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Input carries everything the planning call sees.
type Input struct {
	Framework      string
	Tree           []string
	ExperimentName string
	SegmentSummary string
	// MiniContext holds at most two pre-fetched files (manifest + one
	// conventional entry point).
	MiniContext map[string]string
}

// Planner makes the one-shot, tool-free planning call.
type Planner struct {
	llm Completer
	log *slog.Logger
}

// New creates a planner.
func New(c Completer, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{llm: c, log: log}
}

// BuildPlan returns a usable plan under all circumstances: any completion
// failure, parse failure, or validation failure yields the deterministic
// fallback. The planning step never aborts a run.
func (p *Planner) BuildPlan(ctx context.Context, in Input) Plan {
	system, user := buildPlanPrompt(in)

	resp, err := p.llm.Complete(ctx, llm.Request{
		System:    system,
		Messages:  []llm.Message{llm.UserText(user)},
		MaxTokens: planMaxTokens,
	})
	if err != nil {
		p.log.Warn("planner completion failed, using fallback plan", "error", err)
		return FallbackPlan(in.Tree)
	}

	plan, err := ParsePlan(resp.TextContent())
	if err != nil {
		p.log.Warn("planner output rejected, using fallback plan", "error", err)
		return FallbackPlan(in.Tree)
	}
	return plan
}

// ParsePlan locates the first balanced JSON object in the response text and
// validates its structure.
func ParsePlan(text string) (Plan, error) {
	span, ok := llm.FirstJSONObject(text)
	if !ok {
		return Plan{}, fmt.Errorf("no JSON object in planner response")
	}

	var plan Plan
	if err := json.Unmarshal([]byte(span), &plan); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan.NewFiles) == 0 {
		return Plan{}, fmt.Errorf("plan has no new files")
	}
	if strings.TrimSpace(plan.IntegrationTarget) == "" {
		return Plan{}, fmt.Errorf("plan has no integration target")
	}
	return plan, nil
}

// FallbackPlan is the deterministic substitute: the first conventional entry
// point present in the tree (or src/App.tsx when none match) plus three
// conventionally named new files.
func FallbackPlan(tree []string) Plan {
	present := make(map[string]bool, len(tree))
	for _, p := range tree {
		present[p] = true
	}

	target := "src/App.tsx"
	for _, candidate := range entryPointCandidates {
		if present[candidate] {
			target = candidate
			break
		}
	}

	return Plan{
		FilesToRead:       []string{"package.json", target},
		IntegrationTarget: target,
		NewFiles:          append([]string(nil), fallbackNewFiles...),
	}
}

// EntryPoint returns the first conventional entry point present in the tree.
func EntryPoint(tree []string) (string, bool) {
	present := make(map[string]bool, len(tree))
	for _, p := range tree {
		present[p] = true
	}
	for _, candidate := range entryPointCandidates {
		if present[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// buildPlanPrompt constructs the system and user prompts for the planning call.
func buildPlanPrompt(in Input) (system string, user string) {
	system = `You plan minimal A/B experiment integrations into web repositories. Return ONLY a JSON object with these fields:
- "files_to_read": existing file paths worth inspecting before writing code (at most 6)
- "integration_target": the ONE existing file to minimally modify so the experiment is reachable
- "new_files": the new file paths to create (at least one)

Rules:
- Every path must come from the provided file tree, except new_files
- Prefer the framework's conventional entry point as the integration target
- Keep the plan minimal and additive
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Framework: %s\n", in.Framework)
	fmt.Fprintf(&sb, "Experiment: %s\n", in.ExperimentName)
	if in.SegmentSummary != "" {
		sb.WriteString("Segments and metrics:\n")
		sb.WriteString(in.SegmentSummary)
		sb.WriteString("\n")
	}

	tree := in.Tree
	if len(tree) > treePreview {
		tree = tree[:treePreview]
	}
	sb.WriteString("\nFile tree:\n")
	sb.WriteString(strings.Join(tree, "\n"))
	sb.WriteString("\n")

	paths := make([]string, 0, len(in.MiniContext))
	for path := range in.MiniContext {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fmt.Fprintf(&sb, "\n--- %s ---\n%s\n", path, in.MiniContext[path])
	}

	user = sb.String()
	return
}
