package storage

import (
	"context"

	"strategos/internal/model"
)

// Store defines persistence operations for registered runs and their
// progress trails.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	AppendProgress(ctx context.Context, runID string, point model.ProgressPoint) error
	GetProgress(ctx context.Context, runID string) ([]model.ProgressPoint, bool, error)
}

// Resetter is implemented by stores that can drop every persisted run.
type Resetter interface {
	Reset(ctx context.Context) error
}
