package store

import (
	"context"

	"github.com/varyops/vary/internal/models"
)

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
	UpdateRun(ctx context.Context, run *models.Run) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
