package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// JobRepository persists FeedEntryJob rows in the sidecar feed_entry_jobs
// table, enforcing the UNIQUE(run_id, entry_id) claim invariant.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository builds a JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Claim attempts to create a QUEUED job row for (runID, entryID). Returns
// false, nil if a row for this (run_id, entry_id) pair already exists (the
// entry is already claimed within this run) rather than an error:
// the "insert; ignore on conflict" idiom the run controller dispatches on.
func (r *JobRepository) Claim(ctx context.Context, runID, entryID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_entry_jobs (run_id, entry_id, status, is_duplicate)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (run_id, entry_id) DO NOTHING
	`, runID, entryID, model.JobQueued)
	if err != nil {
		return false, fmt.Errorf("failed to claim job (%s, %s): %w", runID, entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result for (%s, %s): %w", runID, entryID, err)
	}
	return n == 1, nil
}

// AdvanceStage persists a job's progression to a new non-terminal status,
// stamping the corresponding per-stage timing column. Re-entering the same
// stage (idempotent re-run after a crash) simply overwrites the timestamp.
func (r *JobRepository) AdvanceStage(ctx context.Context, runID, entryID string, status model.JobStatus, stampColumn string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE feed_entry_jobs SET status = $3, %s = $4 WHERE run_id = $1 AND entry_id = $2`, stampColumn)
	if _, err := r.db.ExecContext(ctx, query, runID, entryID, status, at); err != nil {
		return fmt.Errorf("failed to advance job (%s, %s) to %s: %w", runID, entryID, status, err)
	}
	return nil
}

// RecordExtraction stores the winning cascade method alongside the
// EXTRACTED transition.
func (r *JobRepository) RecordExtraction(ctx context.Context, runID, entryID string, method model.ExtractionMethod, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feed_entry_jobs SET status = $3, extraction_method = $4, extracted_at = $5
		WHERE run_id = $1 AND entry_id = $2
	`, runID, entryID, model.JobExtracted, method, at)
	if err != nil {
		return fmt.Errorf("failed to record extraction for (%s, %s): %w", runID, entryID, err)
	}
	return nil
}

// RecordDedupe stores the deduplicator's verdict alongside the DEDUPED (or
// SKIPPED_DUPLICATE) transition.
func (r *JobRepository) RecordDedupe(ctx context.Context, runID, entryID, contentHash string, minhash []uint64, isDuplicate bool, duplicateOf *string, at time.Time) error {
	status := model.JobDeduped
	if isDuplicate {
		status = model.JobSkippedDuplicate
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE feed_entry_jobs
		SET status = $3, content_hash = $4, minhash_signature = $5, is_duplicate = $6, duplicate_of_entry_id = $7
		WHERE run_id = $1 AND entry_id = $2
	`, runID, entryID, status, contentHash, pqUint64Array(minhash), isDuplicate, duplicateOf)
	if err != nil {
		return fmt.Errorf("failed to record dedupe verdict for (%s, %s): %w", runID, entryID, err)
	}
	return nil
}

// Fail transitions a job to its terminal FAILED(reason) state. Per the
// propagation policy this never returns a stage-aborting error to the
// caller on its own; the run controller decides whether the underlying
// cause is entry-scoped or stage-global before calling Fail.
func (r *JobRepository) Fail(ctx context.Context, runID, entryID string, reason model.FailureReason) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feed_entry_jobs SET status = $3, failure_reason = $4 WHERE run_id = $1 AND entry_id = $2
	`, runID, entryID, model.JobFailed, reason)
	if err != nil {
		return fmt.Errorf("failed to fail job (%s, %s): %w", runID, entryID, err)
	}
	return nil
}

// pqUint64Array renders a MinHash signature as a Postgres bigint[] literal.
// lib/pq's pq.Array expects a signed-integer-compatible slice; MinHash
// values are unsigned 64-bit, so this renders the literal array syntax
// directly rather than risk silent truncation through int64 conversion of
// values that legitimately use the top bit.
func pqUint64Array(values []uint64) string {
	if len(values) == 0 {
		return "{}"
	}
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", v)
	}
	return out + "}"
}
