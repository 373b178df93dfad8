package embed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/redis/go-redis/v9"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// Store is the content-addressed vector store: keyed by entry_id, not
// (run_id, entry_id), so a vector survives across runs and re-embedding is a
// no-op when the text has not changed.
type Store struct {
	db    *sqlx.DB
	cache *redis.Client
	ttl   time.Duration
}

const cacheNamespace = "geosignal:vector"

// NewStore builds a Store. cache may be nil to disable the read-through
// cache entirely.
func NewStore(db *sqlx.DB, cache *redis.Client, ttl time.Duration) *Store {
	return &Store{db: db, cache: cache, ttl: ttl}
}

// Get returns the stored vector for entryID, checking the cache first.
func (s *Store) Get(ctx context.Context, entryID string) (*model.EntryVector, bool, error) {
	if s.cache != nil {
		if v, ok, err := s.getCached(ctx, entryID); err == nil && ok {
			return v, true, nil
		}
	}

	var row struct {
		EntryID   string          `db:"entry_id"`
		Vector    pgvector.Vector `db:"vector"`
		Model     string          `db:"model"`
		UpdatedAt time.Time       `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT entry_id, vector, model, updated_at FROM feed_entry_vectors WHERE entry_id = $1`, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load vector for %s: %w", entryID, err)
	}

	ev := &model.EntryVector{EntryID: row.EntryID, Vector: row.Vector.Slice(), Model: row.Model, UpdatedAt: row.UpdatedAt}
	if s.cache != nil {
		_ = s.setCached(ctx, ev)
	}
	return ev, true, nil
}

// Upsert writes a vector, keyed on entry_id: idempotent for the same
// (entry_id, text) pair since the caller only recomputes when text changed.
func (s *Store) Upsert(ctx context.Context, ev *model.EntryVector) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_entry_vectors (entry_id, vector, model, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (entry_id) DO UPDATE
		SET vector = EXCLUDED.vector, model = EXCLUDED.model, updated_at = now()
	`, ev.EntryID, pgvector.NewVector(ev.Vector), ev.Model)
	if err != nil {
		return fmt.Errorf("failed to upsert vector for %s: %w", ev.EntryID, err)
	}
	if s.cache != nil {
		_ = s.setCached(ctx, ev)
	}
	return nil
}

func (s *Store) cacheKey(entryID string) string {
	return cacheNamespace + ":" + entryID
}

func (s *Store) getCached(ctx context.Context, entryID string) (*model.EntryVector, bool, error) {
	raw, err := s.cache.Get(ctx, s.cacheKey(entryID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ev model.EntryVector
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, false, err
	}
	return &ev, true, nil
}

func (s *Store) setCached(ctx context.Context, ev *model.EntryVector) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(ev.EntryID), raw, s.ttl).Err()
}
