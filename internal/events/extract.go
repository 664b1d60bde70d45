// Package events derives a tracking plan from an experiment's free-text
// metrics description.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/varyops/vary/internal/llm"
	"github.com/varyops/vary/internal/models"
)

const extractMaxTokens = 1024

// Completer is the completion-service dependency.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Extractor makes the one-shot, tool-free events extraction call.
type Extractor struct {
	llm Completer
	log *slog.Logger
}

// New creates an extractor.
func New(c Completer, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{llm: c, log: log}
}

// Extract turns the experiment's metrics description into concrete tracking
// events plus the logic for computing the metrics from them. Experiments
// without a metrics description get an empty plan without a model call.
func (e *Extractor) Extract(ctx context.Context, exp *models.Experiment) (*models.TrackingPlan, error) {
	if strings.TrimSpace(exp.Metrics) == "" {
		return &models.TrackingPlan{}, nil
	}

	system, user := buildExtractPrompt(exp)
	resp, err := e.llm.Complete(ctx, llm.Request{
		System:    system,
		Messages:  []llm.Message{llm.UserText(user)},
		MaxTokens: extractMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting tracking events: %w", err)
	}

	plan, err := ParsePlan(resp.TextContent())
	if err != nil {
		return nil, fmt.Errorf("extracting tracking events: %w", err)
	}
	e.log.Debug("tracking plan extracted", "experiment", exp.Name, "events", len(plan.Events))
	return plan, nil
}

// ParsePlan decodes the model's tracking-plan JSON.
func ParsePlan(text string) (*models.TrackingPlan, error) {
	span, ok := llm.FirstJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var plan models.TrackingPlan
	if err := json.Unmarshal([]byte(span), &plan); err != nil {
		return nil, fmt.Errorf("decoding tracking plan: %w", err)
	}
	for i, ev := range plan.Events {
		if ev.EventID == "" {
			return nil, fmt.Errorf("event %d has no event_id", i)
		}
	}
	return &plan, nil
}

func buildExtractPrompt(exp *models.Experiment) (string, string) {
	system := `You are an analytics engineer. Given an experiment's success metrics, define the minimal set of tracking events needed to compute them.

Respond with only a JSON object of this shape:
{"events": [{"event_id": "snake_case_id", "description": "...", "trigger": "what user action or page state fires it"}], "computation_logic": "how to compute each metric from the events"}

Keep event IDs short, snake_case, and unambiguous. Include exposure events when a metric needs a denominator.`

	var b strings.Builder
	fmt.Fprintf(&b, "Experiment: %s\n", exp.Name)
	if exp.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", exp.Description)
	}
	fmt.Fprintf(&b, "Success metrics: %s\n\n", exp.Metrics)
	b.WriteString("Variants:\n")
	for _, seg := range exp.Segments {
		fmt.Fprintf(&b, "- %s (id=%d): %s\n", seg.Name, seg.ID, seg.Instructions)
	}
	return system, b.String()
}
