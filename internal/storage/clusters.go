package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// ClustersRepository owns the date-partitioned news_clusters_<YYYYMMDD>
// output table and the run-scoped cluster_members sidecar table.
type ClustersRepository struct {
	db *sqlx.DB
}

// NewClustersRepository builds a ClustersRepository.
func NewClustersRepository(db *sqlx.DB) *ClustersRepository {
	return &ClustersRepository{db: db}
}

// EnsureOutputTable creates table if it does not already exist.
func (r *ClustersRepository) EnsureOutputTable(ctx context.Context, table string) error {
	quoted, err := QuoteIdentifier(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			flashpoint_id uuid NOT NULL,
			cluster_id integer NOT NULL,
			summary text,
			article_count integer NOT NULL,
			top_domains jsonb,
			languages jsonb,
			urls jsonb,
			images jsonb,
			created_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (flashpoint_id, cluster_id)
		)
	`, quoted)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure output table %s: %w", table, err)
	}
	return nil
}

// InsertOutput writes one cluster's dense-ranked aggregated view.
func (r *ClustersRepository) InsertOutput(ctx context.Context, table string, out model.ClusterOutput) error {
	quoted, err := QuoteIdentifier(table)
	if err != nil {
		return err
	}

	domains, err := json.Marshal(out.TopDomains)
	if err != nil {
		return fmt.Errorf("failed to encode top_domains: %w", err)
	}
	langs, err := json.Marshal(out.Languages)
	if err != nil {
		return fmt.Errorf("failed to encode languages: %w", err)
	}
	urls, err := json.Marshal(out.URLs)
	if err != nil {
		return fmt.Errorf("failed to encode urls: %w", err)
	}
	images, err := json.Marshal(out.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (flashpoint_id, cluster_id, summary, article_count, top_domains, languages, urls, images, created_at)
		VALUES (:flashpoint_id, :cluster_id, :summary, :article_count, CAST(:top_domains AS jsonb), CAST(:languages AS jsonb), CAST(:urls AS jsonb), CAST(:images AS jsonb), now())
		ON CONFLICT (flashpoint_id, cluster_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			article_count = EXCLUDED.article_count,
			top_domains = EXCLUDED.top_domains,
			languages = EXCLUDED.languages,
			urls = EXCLUDED.urls,
			images = EXCLUDED.images
	`, quoted)

	named, args, err := sqlx.Named(query, map[string]interface{}{
		"flashpoint_id": out.FlashpointID,
		"cluster_id":    out.ClusterID,
		"summary":       out.Summary,
		"article_count": out.ArticleCount,
		"top_domains":   string(domains),
		"languages":     string(langs),
		"urls":          string(urls),
		"images":        string(images),
	})
	if err != nil {
		return fmt.Errorf("failed to bind cluster output parameters: %w", err)
	}
	rebound := r.db.Rebind(named)
	if _, err := r.db.ExecContext(ctx, rebound, args...); err != nil {
		return fmt.Errorf("failed to insert cluster output into %s: %w", table, err)
	}
	return nil
}

// InsertMembers records a cluster's backing entry_id set in the run-scoped
// cluster_members sidecar table, keyed so a stage re-run can safely
// regenerate rows for the same (run_id, flashpoint_id, cluster_uuid).
func (r *ClustersRepository) InsertMembers(ctx context.Context, runID, flashpointID, clusterUUID string, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cluster_members transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cluster_members WHERE run_id = $1 AND flashpoint_id = $2 AND cluster_uuid = $3
	`, runID, flashpointID, clusterUUID); err != nil {
		return fmt.Errorf("failed to clear prior cluster_members for (%s, %s, %s): %w", runID, flashpointID, clusterUUID, err)
	}

	for _, entryID := range entryIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cluster_members (run_id, flashpoint_id, cluster_uuid, entry_id) VALUES ($1, $2, $3, $4)
		`, runID, flashpointID, clusterUUID, entryID); err != nil {
			return fmt.Errorf("failed to insert cluster_member %s: %w", entryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cluster_members for (%s, %s, %s): %w", runID, flashpointID, clusterUUID, err)
	}
	return nil
}
