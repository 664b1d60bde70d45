package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/varyops/vary/internal/models"
	"github.com/varyops/vary/internal/planner"
)

const taskTreePreview = 250

// TaskInput carries everything the task prompt needs for one run.
type TaskInput struct {
	Owner      string
	Repo       string
	Branch     string
	Base       string
	Framework  string
	StyleNotes string
	Plan       planner.Plan
	Context    []planner.FileResult
	Experiment *models.Experiment
	Tracking   *models.TrackingPlan
	WebhookURL string
	Tree       []string
}

// buildWritePrompt returns the system and user prompts for the write loop.
// The user prompt front-loads everything the model needs so the loop itself
// never has to answer questions: experiment definition, preview-hash
// mapping, tracking plan, style notes, plan, and pre-read file contents.
func buildWritePrompt(in TaskInput) (string, string) {
	system := `You are an expert software engineer integrating an A/B experiment into an existing repository.

You work exclusively through tools:
- stage_file stages the complete content of one file for the next commit.
- flush_writes commits every staged file as a single commit on the working branch.
- compare_changes shows what has landed on the branch versus the base branch.

Rules:
- Always write complete file contents; never emit placeholders or elisions.
- Match the repository's existing style exactly.
- Stage related files together, then flush once they form a coherent change.
- Use compare_changes to verify your work before finishing.
- When the integration is complete and flushed, reply with plain text containing exactly one JSON object:
  {"status": "done", "commitMessage": "...", "prTitle": "...", "prDescription": "...", "verificationNotes": "..."}
- Do not call any tool in the same reply as the final JSON object.`

	var b strings.Builder

	fmt.Fprintf(&b, "Integrate the following A/B experiment into %s/%s on branch %s (base: %s).\n\n",
		in.Owner, in.Repo, in.Branch, in.Base)

	expJSON, _ := json.MarshalIndent(in.Experiment, "", "  ")
	fmt.Fprintf(&b, "## Experiment definition\n```json\n%s\n```\n\n", expJSON)

	b.WriteString("## Variant preview mapping\n")
	b.WriteString("The integration must support forcing a variant via the ?x= URL parameter:\n")
	for _, line := range HashMappingLines(in.Experiment) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("When no ?x= parameter matches, assign the variant randomly by the segment percentages and persist the assignment (localStorage) so a visitor always sees the same variant.\n\n")

	if in.Tracking != nil && len(in.Tracking.Events) > 0 {
		trackJSON, _ := json.MarshalIndent(in.Tracking, "", "  ")
		fmt.Fprintf(&b, "## Tracking plan\n```json\n%s\n```\n", trackJSON)
		fmt.Fprintf(&b, "Each event must be sent as a POST to %s with a JSON body of the shape:\n", in.WebhookURL)
		fmt.Fprintf(&b, "```json\n{\"event_id\": \"...\", \"experiment_id\": %d, \"segment_id\": <assigned segment id>, \"timestamp\": \"<ISO-8601>\"}\n```\n", in.Experiment.ID)
		b.WriteString("Tracking must never break the page: wrap sends in a try/catch and fire-and-forget.\n\n")
	}

	fmt.Fprintf(&b, "## Repository\nFramework: %s\n\n", in.Framework)
	if in.StyleNotes != "" {
		fmt.Fprintf(&b, "Code style to match:\n%s\n\n", in.StyleNotes)
	}

	fmt.Fprintf(&b, "## Plan\nCreate these new files:\n")
	for _, path := range in.Plan.NewFiles {
		fmt.Fprintf(&b, "- %s\n", path)
	}
	fmt.Fprintf(&b, "Wire the experiment into: %s\n\n", in.Plan.IntegrationTarget)

	if len(in.Tree) > 0 {
		tree := in.Tree
		if len(tree) > taskTreePreview {
			tree = tree[:taskTreePreview]
		}
		fmt.Fprintf(&b, "## File tree (first %d entries)\n%s\n\n", len(tree), strings.Join(tree, "\n"))
	}

	if len(in.Context) > 0 {
		b.WriteString("## Current file contents\n")
		for _, f := range in.Context {
			if f.Err != "" {
				fmt.Fprintf(&b, "### %s\n(unreadable: %s)\n\n", f.Path, f.Err)
				continue
			}
			fmt.Fprintf(&b, "### %s\n```\n%s\n```\n", f.Path, f.Content)
			if f.Truncated {
				b.WriteString("(truncated)\n")
			}
			b.WriteByte('\n')
		}
	}

	b.WriteString("Begin by staging the new experiment files, then modify the integration target, flush, and verify with compare_changes.")

	return system, b.String()
}

// HashMappingLines renders one preview-mapping line per segment, in the
// order segments appear on the experiment.
func HashMappingLines(exp *models.Experiment) []string {
	lines := make([]string, 0, len(exp.Segments))
	for _, seg := range exp.Segments {
		lines = append(lines, fmt.Sprintf("- Segment %q (id=%d): preview_hash=%q, forced by ?x=%s",
			seg.Name, seg.ID, seg.PreviewHash, seg.PreviewHash))
	}
	return lines
}
