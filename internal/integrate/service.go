// Package integrate orchestrates one experiment integration run end to end:
// branch, detect, plan, read, write loop, finalize, pull request.
package integrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/varyops/vary/internal/agent"
	"github.com/varyops/vary/internal/detect"
	"github.com/varyops/vary/internal/events"
	"github.com/varyops/vary/internal/models"
	"github.com/varyops/vary/internal/planner"
	"github.com/varyops/vary/internal/repo"
)

const miniContextMaxChars = 6000

// Config identifies the target repository and run-wide settings.
type Config struct {
	Owner      string
	Repo       string
	WebhookURL string
}

type trackingExtractor interface {
	Extract(ctx context.Context, exp *models.Experiment) (*models.TrackingPlan, error)
}

type planBuilder interface {
	BuildPlan(ctx context.Context, in planner.Input) planner.Plan
}

type writeAgent interface {
	Run(ctx context.Context, in agent.TaskInput) (*agent.Outcome, error)
}

// Service runs integrations against one repository.
type Service struct {
	cfg       Config
	acc       repo.Accessor
	extractor trackingExtractor
	planner   planBuilder
	agent     writeAgent
	log       *slog.Logger

	// OnBranchCreated, when set, is called once the working branch exists,
	// before any model-driven writes.
	OnBranchCreated func(branch string)

	newSuffix func() string
}

// New wires a service from its three model-driven stages.
func New(cfg Config, acc repo.Accessor, llm agent.Completer, agentCfg agent.Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		acc:       acc,
		extractor: events.New(llm, log),
		planner:   planner.New(llm, log),
		agent:     agent.New(llm, acc, agentCfg, log),
		log:       log,
		newSuffix: func() string { return strings.ToLower(ulid.Make().String()) },
	}
}

// Run integrates exp into the repository and opens a pull request. Any
// returned error means no pull request was opened; commits may still exist
// on the working branch, which is reported via OnBranchCreated.
func (s *Service) Run(ctx context.Context, exp *models.Experiment) (*models.IntegrationResult, error) {
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	exp.EnsurePreviewHashes()

	tracking, err := s.extractor.Extract(ctx, exp)
	if err != nil {
		return nil, err
	}

	base, err := s.acc.DefaultBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving default branch: %w", err)
	}

	branch := s.branchName(exp.Name)
	if err := s.acc.CreateWorkingBranch(ctx, base, branch); err != nil {
		return nil, fmt.Errorf("creating branch %s: %w", branch, err)
	}
	if s.OnBranchCreated != nil {
		s.OnBranchCreated(branch)
	}
	s.log.Info("working branch created", "branch", branch, "base", base)

	framework := detect.DetectFramework(ctx, s.acc, base)

	tree, err := s.acc.Tree(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("listing repository tree: %w", err)
	}

	plan := s.planner.BuildPlan(ctx, planner.Input{
		Framework:      string(framework),
		Tree:           tree,
		ExperimentName: exp.Name,
		SegmentSummary: segmentSummary(exp),
		MiniContext:    s.miniContext(ctx, base, tree),
	})
	s.log.Info("plan built", "target", plan.IntegrationTarget, "new_files", len(plan.NewFiles))

	contextFiles, err := planner.ReadContext(ctx, s.acc, base, plan)
	if err != nil {
		return nil, fmt.Errorf("reading context files: %w", err)
	}
	style := detect.InferStyle(planner.ContentsMap(contextFiles))

	outcome, err := s.agent.Run(ctx, agent.TaskInput{
		Owner:      s.cfg.Owner,
		Repo:       s.cfg.Repo,
		Branch:     branch,
		Base:       base,
		Framework:  string(framework),
		StyleNotes: style.Bullets(),
		Plan:       plan,
		Context:    contextFiles,
		Experiment: exp,
		Tracking:   tracking,
		WebhookURL: s.cfg.WebhookURL,
		Tree:       tree,
	})
	if err != nil {
		return nil, fmt.Errorf("write loop: %w", err)
	}

	comp, err := s.acc.Diff(ctx, base, branch)
	if err != nil {
		return nil, fmt.Errorf("verifying branch diff: %w", err)
	}
	if required := MinChangedFiles(len(exp.Segments)); comp.TotalFiles < required {
		return nil, &InsufficientChangesError{Changed: comp.TotalFiles, Required: required}
	}

	title, body := pullRequestText(exp, outcome.Payload)
	cr, err := s.acc.OpenChangeRequest(ctx, branch, base, title, body)
	if err != nil {
		return nil, fmt.Errorf("opening pull request: %w", err)
	}
	s.log.Info("pull request opened", "url", cr.URL, "changed_files", comp.TotalFiles,
		"turns", outcome.Turns, "payload_synthesized", outcome.PayloadSynthesized)

	return &models.IntegrationResult{
		PRURL:             cr.URL,
		PRNumber:          cr.Number,
		BranchName:        branch,
		ChangedFilesCount: comp.TotalFiles,
		VerificationNotes: outcome.Payload.VerificationNotes,
	}, nil
}

func (s *Service) branchName(experimentName string) string {
	return fmt.Sprintf("experiment-%s-%s", Slugify(experimentName), s.newSuffix())
}

// miniContext pre-fetches the manifest and one conventional entry point for
// the planning prompt. Both reads are best effort.
func (s *Service) miniContext(ctx context.Context, base string, tree []string) map[string]string {
	mini := make(map[string]string, 2)
	paths := []string{"package.json"}
	if ep, ok := planner.EntryPoint(tree); ok {
		paths = append(paths, ep)
	}
	for _, path := range paths {
		content, _, err := s.acc.ReadFile(ctx, base, path, miniContextMaxChars)
		if err != nil {
			s.log.Debug("mini-context read skipped", "path", path, "error", err)
			continue
		}
		mini[path] = content
	}
	return mini
}

func segmentSummary(exp *models.Experiment) string {
	var b strings.Builder
	for _, seg := range exp.Segments {
		fmt.Fprintf(&b, "%s (%.0f%%): %s\n", seg.Name, seg.Percentage, seg.Instructions)
	}
	return strings.TrimRight(b.String(), "\n")
}

func pullRequestText(exp *models.Experiment, payload *agent.TerminalPayload) (title, body string) {
	title = payload.PRTitle
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Implement %s experiment", exp.Name)
	}
	body = payload.PRDescription
	if strings.TrimSpace(body) == "" {
		body = fmt.Sprintf("Automated integration of the %s A/B experiment.", exp.Name)
	}
	if notes := strings.TrimSpace(payload.VerificationNotes); notes != "" {
		body += "\n\n## Verification\n" + notes
	}
	if exp.PreviewURL != "" {
		body += "\n\n## Variant previews"
		for _, seg := range exp.Segments {
			body += fmt.Sprintf("\n- %s: %s?x=%s", seg.Name, exp.PreviewURL, seg.PreviewHash)
		}
	}
	return title, body
}

// Slugify lowercases a name and reduces it to hyphen-separated alphanumeric
// runs, bounded to keep branch names manageable.
func Slugify(name string) string {
	const maxLen = 40
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxLen {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "experiment"
	}
	return slug
}
