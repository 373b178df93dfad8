package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// RunRepository persists ProcessingRun rows in the sidecar processing_runs
// table.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository builds a RunRepository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Open inserts a fresh ProcessingRun in RUNNING state.
func (r *RunRepository) Open(ctx context.Context, run *model.ProcessingRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processing_runs (run_id, target_date, tier, status, started_at, selected, processed, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.RunID, run.TargetDate, run.Tier, run.Status, run.StartedAt, run.Selected, run.Processed, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to open run %s: %w", run.RunID, err)
	}
	return nil
}

// UpdateCounters writes the run's in-progress selected/processed/failed
// counters; the run controller calls it once, after every stage has run and
// before the run is closed.
func (r *RunRepository) UpdateCounters(ctx context.Context, runID string, selected, processed, failed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_runs SET selected = $2, processed = $3, failed = $4 WHERE run_id = $1
	`, runID, selected, processed, failed)
	if err != nil {
		return fmt.Errorf("failed to update run counters for %s: %w", runID, err)
	}
	return nil
}

// Complete transitions a run to COMPLETED or FAILED, stamping completed_at
// and, for FAILED, the root-cause error message.
func (r *RunRepository) Complete(ctx context.Context, runID string, status model.RunStatus, completedAt time.Time, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_runs SET status = $2, completed_at = $3, error_message = $4 WHERE run_id = $1
	`, runID, status, completedAt, errMsg)
	if err != nil {
		return fmt.Errorf("failed to close run %s: %w", runID, err)
	}
	return nil
}

// SweepAbandoned transitions any run still RUNNING after olderThan to
// FAILED with reason "abandoned", per the recovery policy: a run stuck in
// RUNNING for more than the configured abandonment window is presumed dead
// before a new run starts.
func (r *RunRepository) SweepAbandoned(ctx context.Context, olderThan time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-olderThan)
	res, err := r.db.ExecContext(ctx, `
		UPDATE processing_runs
		SET status = $1, completed_at = $2, error_message = 'abandoned: exceeded run deadline'
		WHERE status = $3 AND started_at < $4
	`, model.RunFailed, now, model.RunRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep abandoned runs: %w", err)
	}
	return res.RowsAffected()
}

// Get loads a ProcessingRun by run_id.
func (r *RunRepository) Get(ctx context.Context, runID string) (*model.ProcessingRun, error) {
	var run model.ProcessingRun
	if err := r.db.GetContext(ctx, &run, `SELECT * FROM processing_runs WHERE run_id = $1`, runID); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}
