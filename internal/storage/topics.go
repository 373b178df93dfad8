package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// TopicsRepository persists the sidecar feed_entry_topics table written by
// the optional topic-classification enricher.
type TopicsRepository struct {
	db *sqlx.DB
}

// NewTopicsRepository builds a TopicsRepository.
func NewTopicsRepository(db *sqlx.DB) *TopicsRepository {
	return &TopicsRepository{db: db}
}

// Upsert writes one entry's classified topic, keyed by entry_id like
// EntryVector so re-classifying an already-processed entry in a later run
// is idempotent.
func (r *TopicsRepository) Upsert(ctx context.Context, topic *model.FeedEntryTopic) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_entry_topics (entry_id, topic)
		VALUES ($1, $2)
		ON CONFLICT (entry_id) DO UPDATE SET topic = EXCLUDED.topic
	`, topic.EntryID, topic.Topic)
	if err != nil {
		return fmt.Errorf("failed to upsert topic for %s: %w", topic.EntryID, err)
	}
	return nil
}
