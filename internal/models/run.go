package models

import "time"

// RunStatus is the lifecycle state of one integration run.
type RunStatus string

const (
	RunStatusImplementing RunStatus = "implementing"
	RunStatusPRCreated    RunStatus = "pr_created"
	RunStatusFailed       RunStatus = "failed"
)

// Run records one integration run for history and inspection.
type Run struct {
	ID             string
	Owner          string
	Repo           string
	ExperimentName string
	BranchName     string
	Status         RunStatus
	PRURL          string
	ChangedFiles   int
	Error          string
	StartedAt      time.Time
	FinishedAt     *time.Time
}
