package models

import (
	"fmt"
	"sort"
)

// Segment is one variant of an experiment. PreviewHash is the token that,
// when present as the ?x= URL parameter, forces this variant to render.
type Segment struct {
	ID           int     `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Instructions string  `json:"instructions" yaml:"instructions"`
	Percentage   float64 `json:"percentage" yaml:"percentage"`
	PreviewHash  string  `json:"preview_hash,omitempty" yaml:"preview_hash,omitempty"`
}

// Experiment is the structured A/B experiment definition supplied by the
// caller. It is input only; this package never mutates repository state.
type Experiment struct {
	ID          int       `json:"id" yaml:"id"`
	ProjectID   int       `json:"project_id" yaml:"project_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Percentage  float64   `json:"percentage" yaml:"percentage"`
	Metrics     string    `json:"metrics" yaml:"metrics"`
	PreviewURL  string    `json:"preview_url,omitempty" yaml:"preview_url,omitempty"`
	Segments    []Segment `json:"segments" yaml:"segments"`
}

// Validate checks the minimum shape required to run an integration.
func (e *Experiment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("experiment name is required")
	}
	if len(e.Segments) == 0 {
		return fmt.Errorf("experiment %q has no segments", e.Name)
	}
	for i, seg := range e.Segments {
		if seg.Name == "" {
			return fmt.Errorf("segment %d has no name", i)
		}
	}
	return nil
}

// EnsurePreviewHashes assigns deterministic preview hashes (test1, test2, ...)
// in segment-ID order to any segment that lacks one.
func (e *Experiment) EnsurePreviewHashes() {
	ordered := make([]*Segment, len(e.Segments))
	for i := range e.Segments {
		ordered[i] = &e.Segments[i]
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for i, seg := range ordered {
		if seg.PreviewHash == "" {
			seg.PreviewHash = fmt.Sprintf("test%d", i+1)
		}
	}
}

// TrackingEvent is one event the integrated code must emit to the webhook.
type TrackingEvent struct {
	EventID     string `json:"event_id"`
	Description string `json:"description"`
	Trigger     string `json:"trigger"`
}

// TrackingPlan holds the events and metric computation logic extracted from
// the experiment's metrics description.
type TrackingPlan struct {
	Events           []TrackingEvent `json:"events"`
	ComputationLogic string          `json:"computation_logic"`
}

// IntegrationResult is returned to the upstream caller after a successful run.
type IntegrationResult struct {
	PRURL             string `json:"pr_url"`
	PRNumber          int    `json:"pr_number"`
	BranchName        string `json:"branch_name"`
	ChangedFilesCount int    `json:"changed_files_count"`
	VerificationNotes string `json:"verification_notes"`
}
