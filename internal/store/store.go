// Package store persists run history: one row per batch execution plus
// the per-place outcomes it produced. SQLite is the default backend;
// postgres is for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/segunak/places-cli/internal/config"
	"github.com/segunak/places-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Mode   string          `json:"mode,omitempty"`
	City   string          `json:"city,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, mode, provider, city string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, summary *model.BatchSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	SaveOutcomes(ctx context.Context, runID string, outcomes []model.EnrichmentOutcome) error
	ListOutcomes(ctx context.Context, runID string) ([]model.EnrichmentOutcome, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the Store named by the config and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = NewSQLite(cfg.SQLitePath)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q (want sqlite or postgres)", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
