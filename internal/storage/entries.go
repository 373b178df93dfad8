package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/retry"
)

// EntriesRepository reads and writes the date-partitioned feed_entries_<YYYYMMDD>
// table. Table names are resolved once per run by ResolvePartitionTables and
// passed in already-validated; this repository still re-validates before
// interpolating any name into SQL text.
type EntriesRepository struct {
	db      *sqlx.DB
	retrier *retry.DatabaseRetrier
}

// NewEntriesRepository builds an EntriesRepository.
func NewEntriesRepository(db *sqlx.DB) *EntriesRepository {
	return &EntriesRepository{db: db, retrier: retry.NewDatabaseRetrier(nil)}
}

// SelectUnprocessed returns up to limit entries from table with a non-null
// flashpoint_id and a null content column: the run's resumable work queue.
func (r *EntriesRepository) SelectUnprocessed(ctx context.Context, table string, limit int) ([]model.FeedEntry, error) {
	quoted, err := QuoteIdentifier(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT entry_id, url, title, language, domain, flashpoint_id, seen_at
		FROM %s
		WHERE flashpoint_id IS NOT NULL AND content IS NULL
		ORDER BY entry_id ASC
		LIMIT $1
	`, quoted)

	var entries []model.FeedEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to select unprocessed entries from %s: %w", table, err)
	}
	return entries, nil
}

// Enrichment is the write-back payload for one entry: every column the core
// mutates, exactly once, across the first run that successfully processes
// the entry.
type Enrichment struct {
	EntryID           string
	TitleEN           string
	Hostname          string
	Content           string
	CompressedContent []byte
	Summary           string
	Entities          model.NEREntities
	GeoEntities       []model.GeoEntity
	Images            []string
}

// WriteEnrichment writes back an entry's enrichment columns. Writing a
// non-null content is the processed marker; JSON-typed columns are bound as
// parameters and cast explicitly (CAST(:param AS jsonb)) rather than via the
// ::jsonb shorthand, since a positional-parameter driver's named-to-
// positional rewrite can otherwise mistake "::name" for a second bind
// variable and corrupt the substitution.
func (r *EntriesRepository) WriteEnrichment(ctx context.Context, table string, e Enrichment) error {
	quoted, err := QuoteIdentifier(table)
	if err != nil {
		return err
	}

	entitiesJSON, err := json.Marshal(e.Entities)
	if err != nil {
		return fmt.Errorf("failed to encode entities for %s: %w", e.EntryID, err)
	}
	geoJSON, err := json.Marshal(e.GeoEntities)
	if err != nil {
		return fmt.Errorf("failed to encode geo_entities for %s: %w", e.EntryID, err)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			title_en = :title_en,
			hostname = :hostname,
			content = :content,
			compressed_content = :compressed_content,
			summary = :summary,
			entities = CAST(:entities AS jsonb),
			geo_entities = CAST(:geo_entities AS jsonb),
			images = :images
		WHERE entry_id = :entry_id
	`, quoted)

	named, args, err := sqlx.Named(query, map[string]interface{}{
		"title_en":           e.TitleEN,
		"hostname":           e.Hostname,
		"content":            e.Content,
		"compressed_content": e.CompressedContent,
		"summary":            e.Summary,
		"entities":           string(entitiesJSON),
		"geo_entities":       string(geoJSON),
		"images":             stringArray(e.Images),
		"entry_id":           e.EntryID,
	})
	if err != nil {
		return fmt.Errorf("failed to bind enrichment parameters for %s: %w", e.EntryID, err)
	}
	rebound := r.db.Rebind(named)

	// Write-back is the one storage path worth retrying: it runs once per
	// entry against a live table and a transient failure here would
	// otherwise cost the whole fetch/extract/enrich investment for that
	// entry.
	_, err = r.retrier.ExecuteDBOperation(ctx, "write_enrichment", func(ctx context.Context, _ int) (any, error) {
		return r.db.ExecContext(ctx, rebound, args...)
	})
	if err != nil {
		return fmt.Errorf("failed to write enrichment for %s: %w", e.EntryID, err)
	}
	return nil
}

// UpdateSummary writes back a single entry's local stage-1 summary,
// independent of WriteEnrichment since it runs later, after clustering.
func (r *EntriesRepository) UpdateSummary(ctx context.Context, table, entryID, summary string) error {
	quoted, err := QuoteIdentifier(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET summary = $1 WHERE entry_id = $2`, quoted)
	if _, err := r.db.ExecContext(ctx, query, summary, entryID); err != nil {
		return fmt.Errorf("failed to update summary for %s: %w", entryID, err)
	}
	return nil
}

// stringArray renders images as a Postgres text[] literal; nil becomes an
// empty array rather than NULL so downstream JSON aggregation never has to
// special-case a missing images column.
func stringArray(values []string) string {
	if len(values) == 0 {
		return "{}"
	}
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += `"` + escapeArrayElement(v) + `"`
	}
	return out + "}"
}

func escapeArrayElement(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '"' || v[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, v[i])
	}
	return string(out)
}
