// Package store persists discovery runs, their records, and the
// reverse-geocode cache in a local SQLite database.
package store

import (
	"context"
	"time"

	"github.com/wom-group/openings-cli/internal/model"
)

// RunFilter narrows ListRuns results.
type RunFilter struct {
	City   string
	Status model.RunStatus
	Limit  int
	Offset int
}

// Store is the persistence interface for discovery runs.
type Store interface {
	Migrate(ctx context.Context) error

	CreateRun(ctx context.Context, city string, cutoff time.Time, params model.RunParams) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, sourceCounts map[model.Source]int, recordCount int) error
	FailRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	SaveRecords(ctx context.Context, runID string, records []*model.Record) error
	GetRecords(ctx context.Context, runID string) ([]*model.Record, error)

	LookupGeocode(ctx context.Context, lat, lon float64) (string, bool)
	StoreGeocode(ctx context.Context, lat, lon float64, address string) error

	Close() error
}
