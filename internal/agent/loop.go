package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/varyops/vary/internal/llm"
	"github.com/varyops/vary/internal/repo"
)

// Completer is the completion-service dependency.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Config bounds one write-loop run.
type Config struct {
	MaxTurns           int
	MaxNudges          int
	MaxTokens          int64
	MaxToolResultChars int
	MaxHistoryMessages int
}

// DefaultConfig returns the standard loop bounds.
func DefaultConfig() Config {
	return Config{
		MaxTurns:           25,
		MaxNudges:          2,
		MaxTokens:          4096,
		MaxToolResultChars: 8000,
		MaxHistoryMessages: 20,
	}
}

// Outcome reports how a run ended. Payload is never nil on a nil error;
// PayloadSynthesized marks the fallback built when commits landed but the
// model never produced a usable closing object.
type Outcome struct {
	Payload            *TerminalPayload
	PayloadSynthesized bool
	CommittedFiles     int
	Turns              int
}

// Agent drives the bounded tool-use write loop against one working branch.
type Agent struct {
	llm Completer
	acc repo.Accessor
	cfg Config
	log *slog.Logger
}

// New creates a write agent.
func New(c Completer, acc repo.Accessor, cfg Config, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{llm: c, acc: acc, cfg: cfg, log: log}
}

// Run executes the write loop for experimentName on branch, diffing against
// base. The first turn forces a tool call; each subsequent turn either
// executes the emitted tool calls or, on a tool-free reply, tries to parse
// the terminal payload. Tool-free empty replies that end the turn normally
// earn at most MaxNudges corrective user turns. Staged-but-unflushed writes are committed
// before the loop returns, on every path including completion errors.
func (a *Agent) Run(ctx context.Context, in TaskInput) (*Outcome, error) {
	system, task := buildWritePrompt(in)
	transcript := NewTranscript(task, a.cfg.MaxHistoryMessages)
	tb := &toolbox{
		acc:    a.acc,
		staged: NewStagedWrites(),
		branch: in.Branch,
		base:   in.Base,
	}

	var (
		finalText string
		nudges    int
		turns     int
	)

	for turn := 0; turn < a.cfg.MaxTurns; turn++ {
		turns = turn + 1
		resp, err := a.llm.Complete(ctx, llm.Request{
			System:       system,
			Messages:     transcript.Messages(),
			Tools:        writeTools(),
			MaxTokens:    a.cfg.MaxTokens,
			ForceToolUse: turn == 0,
		})
		if err != nil {
			a.safetyFlush(ctx, tb, in.Experiment.Name)
			return nil, fmt.Errorf("completion on turn %d: %w", turns, err)
		}

		if len(resp.Blocks) > 0 {
			transcript.Append(llm.Message{Role: llm.RoleAssistant, Blocks: resp.Blocks})
		}

		uses := resp.ToolUses()
		if len(uses) > 0 {
			results := make([]llm.Block, 0, len(uses))
			for _, use := range uses {
				result := tb.execute(ctx, use.Name, use.Input)
				a.log.Debug("tool call", "turn", turns, "tool", use.Name, "ok", result["ok"])
				content := compactToolResult(use.Name, result, a.cfg.MaxToolResultChars)
				results = append(results, llm.ToolResultBlock(use.ID, content, false))
			}
			transcript.Append(llm.Message{Role: llm.RoleUser, Blocks: results})
			transcript.Trim()
			continue
		}

		if text := resp.TextContent(); text != "" {
			finalText = text
			break
		}

		// Nudges answer a deliberate empty reply. An empty reply with any
		// other stop reason (a token-capped turn, say) just burns a turn.
		if resp.StopReason != llm.StopEndTurn {
			a.log.Warn("empty reply", "turn", turns, "stop_reason", resp.StopReason)
			continue
		}

		if nudges >= a.cfg.MaxNudges {
			a.log.Warn("write loop abandoned", "turn", turns, "nudges", nudges)
			break
		}
		nudges++
		transcript.Append(llm.UserText(a.nudgeText(ctx, tb, in.Experiment.Name)))
		transcript.Trim()
	}

	a.safetyFlush(ctx, tb, in.Experiment.Name)

	payload, err := ParseTerminalPayload(finalText)
	if err != nil {
		if tb.committed == 0 {
			return nil, fmt.Errorf("%w: %v", ErrNoTerminalPayload, err)
		}
		a.log.Warn("synthesizing terminal payload", "reason", err)
		return &Outcome{
			Payload:            SynthesizeTerminalPayload(in.Experiment.Name),
			PayloadSynthesized: true,
			CommittedFiles:     tb.committed,
			Turns:              turns,
		}, nil
	}
	return &Outcome{
		Payload:        payload,
		CommittedFiles: tb.committed,
		Turns:          turns,
	}, nil
}

// nudgeText flushes any staged writes so the model's work is not lost, then
// asks for the closing JSON object.
func (a *Agent) nudgeText(ctx context.Context, tb *toolbox, experimentName string) string {
	if tb.staged.Len() > 0 {
		count, err := tb.staged.Flush(ctx, a.acc, tb.branch, fmt.Sprintf("Implement %s experiment", experimentName))
		if err != nil {
			a.log.Warn("nudge flush failed", "error", err)
			return fmt.Sprintf("Flushing your staged files failed: %v. Fix the problem with your tools, or if the work is complete, reply with only the final JSON object.", err)
		}
		tb.committed += count
		return fmt.Sprintf("Your %d staged file(s) were committed for you. If the integration is complete, reply with only the final JSON object: {\"status\": \"done\", \"commitMessage\": ..., \"prTitle\": ..., \"prDescription\": ..., \"verificationNotes\": ...}.", count)
	}
	return "Reply with only the final JSON object: {\"status\": \"done\", \"commitMessage\": ..., \"prTitle\": ..., \"prDescription\": ..., \"verificationNotes\": ...}."
}

// safetyFlush commits anything still staged when the loop exits. Staged
// work is never silently discarded.
func (a *Agent) safetyFlush(ctx context.Context, tb *toolbox, experimentName string) {
	if tb.staged.Len() == 0 {
		return
	}
	count, err := tb.staged.Flush(ctx, a.acc, tb.branch, fmt.Sprintf("Implement %s experiment", experimentName))
	if err != nil {
		a.log.Error("safety flush failed", "staged", tb.staged.Len(), "error", err)
		return
	}
	tb.committed += count
	a.log.Info("safety flush committed staged files", "files", count)
}
