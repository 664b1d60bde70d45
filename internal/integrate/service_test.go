package integrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varyops/vary/internal/agent"
	"github.com/varyops/vary/internal/models"
	"github.com/varyops/vary/internal/planner"
	"github.com/varyops/vary/internal/repo"
)

type fakeAccessor struct {
	tree      []string
	files     map[string]string
	branches  []string
	diff      *repo.Comparison
	diffErr   error
	branchErr error
	prs       []string
	prErr     error
}

func (f *fakeAccessor) DefaultBranch(context.Context) (string, error) { return "main", nil }

func (f *fakeAccessor) CreateWorkingBranch(_ context.Context, _ string, name string) error {
	if f.branchErr != nil {
		return f.branchErr
	}
	f.branches = append(f.branches, name)
	return nil
}

func (f *fakeAccessor) Tree(context.Context, string) ([]string, error) { return f.tree, nil }

func (f *fakeAccessor) ReadFile(_ context.Context, _ string, path string, _ int) (string, bool, error) {
	content, ok := f.files[path]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", repo.ErrNotFound, path)
	}
	return content, false, nil
}

func (f *fakeAccessor) CommitFiles(context.Context, string, string, map[string]string) (string, error) {
	return "sha1", nil
}

func (f *fakeAccessor) Diff(context.Context, string, string) (*repo.Comparison, error) {
	if f.diffErr != nil {
		return nil, f.diffErr
	}
	return f.diff, nil
}

func (f *fakeAccessor) OpenChangeRequest(_ context.Context, _, _, title, _ string) (*repo.ChangeRequest, error) {
	if f.prErr != nil {
		return nil, f.prErr
	}
	f.prs = append(f.prs, title)
	return &repo.ChangeRequest{URL: "https://github.com/acme/shop/pull/5", Number: 5}, nil
}

func (f *fakeAccessor) InvalidateTree() {}

type fakeExtractor struct {
	plan *models.TrackingPlan
	err  error
}

func (f *fakeExtractor) Extract(context.Context, *models.Experiment) (*models.TrackingPlan, error) {
	return f.plan, f.err
}

type fakePlanner struct {
	plan planner.Plan
	in   planner.Input
}

func (f *fakePlanner) BuildPlan(_ context.Context, in planner.Input) planner.Plan {
	f.in = in
	return f.plan
}

type fakeAgent struct {
	outcome *agent.Outcome
	err     error
	in      agent.TaskInput
}

func (f *fakeAgent) Run(_ context.Context, in agent.TaskInput) (*agent.Outcome, error) {
	f.in = in
	return f.outcome, f.err
}

func testExperiment() *models.Experiment {
	return &models.Experiment{
		ID:         7,
		Name:       "Checkout CTA Test",
		Metrics:    "CTA click-through rate",
		PreviewURL: "https://shop.example.com",
		Segments: []models.Segment{
			{ID: 1, Name: "control", Percentage: 50, Instructions: "current button"},
			{ID: 2, Name: "variant", Percentage: 50, Instructions: "green button"},
		},
	}
}

func testService(acc *fakeAccessor, ag *fakeAgent) (*Service, *fakePlanner) {
	pl := &fakePlanner{plan: planner.Plan{
		FilesToRead:       []string{"app/page.tsx"},
		IntegrationTarget: "app/page.tsx",
		NewFiles:          []string{"src/experiments/useExperiment.ts"},
	}}
	s := &Service{
		cfg:       Config{Owner: "acme", Repo: "shop", WebhookURL: "http://localhost:9000/webhook/event"},
		acc:       acc,
		extractor: &fakeExtractor{plan: &models.TrackingPlan{}},
		planner:   pl,
		agent:     ag,
		log:       slog.Default(),
		newSuffix: func() string { return "01test" },
	}
	return s, pl
}

func donePayload() *agent.TerminalPayload {
	return &agent.TerminalPayload{
		Status:            "done",
		PRTitle:           "Implement checkout CTA experiment",
		PRDescription:     "Adds the experiment hook and wires the page.",
		VerificationNotes: "compare_changes showed 3 files.",
	}
}

func TestRun_HappyPath(t *testing.T) {
	acc := &fakeAccessor{
		tree:  []string{"package.json", "app/page.tsx", "app/layout.tsx"},
		files: map[string]string{"package.json": `{"dependencies":{"next":"14"}}`, "app/page.tsx": "export default function Page() {}"},
		diff: &repo.Comparison{TotalFiles: 3, Files: []repo.DiffFile{
			{Path: "src/experiments/useExperiment.ts"}, {Path: "src/experiments/tracking.ts"}, {Path: "app/page.tsx"},
		}},
	}
	ag := &fakeAgent{outcome: &agent.Outcome{Payload: donePayload(), CommittedFiles: 3}}
	s, _ := testService(acc, ag)

	var notified string
	s.OnBranchCreated = func(branch string) { notified = branch }

	result, err := s.Run(context.Background(), testExperiment())
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/shop/pull/5", result.PRURL)
	assert.Equal(t, 5, result.PRNumber)
	assert.Equal(t, "experiment-checkout-cta-test-01test", result.BranchName)
	assert.Equal(t, 3, result.ChangedFilesCount)
	assert.Equal(t, "compare_changes showed 3 files.", result.VerificationNotes)

	require.Len(t, acc.branches, 1)
	assert.Equal(t, result.BranchName, acc.branches[0])
	assert.Equal(t, result.BranchName, notified)

	// Missing preview hashes were assigned before the agent ran.
	assert.Equal(t, "test1", ag.in.Experiment.Segments[0].PreviewHash)
	assert.Equal(t, "test2", ag.in.Experiment.Segments[1].PreviewHash)
	assert.Equal(t, "main", ag.in.Base)
}

func TestRun_PassesDetectionAndPlanToAgent(t *testing.T) {
	acc := &fakeAccessor{
		tree: []string{"package.json", "app/layout.tsx", "app/page.tsx"},
		files: map[string]string{
			"package.json":   `{"dependencies":{"next":"14.0.0","react":"18"}}`,
			"app/layout.tsx": "const x = 'single';",
			"app/page.tsx":   "const y = 'quotes';",
		},
		diff: &repo.Comparison{TotalFiles: 3},
	}
	ag := &fakeAgent{outcome: &agent.Outcome{Payload: donePayload()}}
	s, pl := testService(acc, ag)

	_, err := s.Run(context.Background(), testExperiment())
	require.NoError(t, err)

	assert.Equal(t, "Next.js App Router", pl.in.Framework)
	assert.Contains(t, pl.in.MiniContext, "package.json")
	assert.Contains(t, pl.in.MiniContext, "app/layout.tsx")
	assert.Contains(t, pl.in.SegmentSummary, "control (50%)")

	assert.Equal(t, "Next.js App Router", ag.in.Framework)
	assert.Equal(t, "app/page.tsx", ag.in.Plan.IntegrationTarget)
	assert.NotEmpty(t, ag.in.StyleNotes)
	require.Len(t, ag.in.Context, 1)
	assert.Equal(t, "app/page.tsx", ag.in.Context[0].Path)
	assert.Equal(t, acc.tree, ag.in.Tree)
}

func TestRun_InsufficientChanges(t *testing.T) {
	acc := &fakeAccessor{
		tree: []string{"package.json", "app/page.tsx"},
		diff: &repo.Comparison{TotalFiles: 1},
	}
	ag := &fakeAgent{outcome: &agent.Outcome{Payload: donePayload()}}
	s, _ := testService(acc, ag)

	_, err := s.Run(context.Background(), testExperiment())
	require.Error(t, err)

	var insufficient *InsufficientChangesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Changed)
	assert.Equal(t, 3, insufficient.Required)
	assert.Empty(t, acc.prs)
}

func TestRun_InvalidExperimentFailsBeforeAnyMutation(t *testing.T) {
	acc := &fakeAccessor{}
	s, _ := testService(acc, &fakeAgent{})

	_, err := s.Run(context.Background(), &models.Experiment{Name: "no-segments"})
	require.Error(t, err)
	assert.Empty(t, acc.branches)
}

func TestRun_ExtractionErrorFailsBeforeBranching(t *testing.T) {
	acc := &fakeAccessor{}
	s, _ := testService(acc, &fakeAgent{})
	s.extractor = &fakeExtractor{err: errors.New("overloaded")}

	_, err := s.Run(context.Background(), testExperiment())
	require.Error(t, err)
	assert.Empty(t, acc.branches)
}

func TestRun_AgentErrorPropagates(t *testing.T) {
	acc := &fakeAccessor{
		tree: []string{"package.json"},
		diff: &repo.Comparison{TotalFiles: 5},
	}
	s, _ := testService(acc, &fakeAgent{err: agent.ErrNoTerminalPayload})

	_, err := s.Run(context.Background(), testExperiment())
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrNoTerminalPayload)
	assert.Empty(t, acc.prs)
}

func TestPullRequestText(t *testing.T) {
	exp := testExperiment()
	exp.EnsurePreviewHashes()

	t.Run("payload text used with previews appended", func(t *testing.T) {
		title, body := pullRequestText(exp, donePayload())
		assert.Equal(t, "Implement checkout CTA experiment", title)
		assert.Contains(t, body, "Adds the experiment hook")
		assert.Contains(t, body, "## Verification")
		assert.Contains(t, body, "https://shop.example.com?x=test1")
		assert.Contains(t, body, "https://shop.example.com?x=test2")
	})

	t.Run("blank payload falls back", func(t *testing.T) {
		title, body := pullRequestText(exp, &agent.TerminalPayload{Status: "done"})
		assert.Contains(t, title, "Checkout CTA Test")
		assert.Contains(t, body, "Checkout CTA Test")
	})
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Checkout CTA Test":       "checkout-cta-test",
		"  hero--copy!! v2 ":      "hero-copy-v2",
		"ALLCAPS":                 "allcaps",
		"日本語のみ":                   "experiment",
		strings.Repeat("ab ", 40): "ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-a",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestMinChangedFiles(t *testing.T) {
	cases := []struct{ segments, want int }{
		{0, 2}, {1, 2}, {2, 3}, {4, 5}, {5, 6}, {9, 6},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MinChangedFiles(c.segments), "segments=%d", c.segments)
	}
}
