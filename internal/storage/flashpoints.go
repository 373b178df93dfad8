package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// FlashpointsRepository reads the date-partitioned flash_point_<YYYYMMDD>
// table. Flashpoints are populated upstream and read-only to the core.
type FlashpointsRepository struct {
	db *sqlx.DB
}

// NewFlashpointsRepository builds a FlashpointsRepository.
func NewFlashpointsRepository(db *sqlx.DB) *FlashpointsRepository {
	return &FlashpointsRepository{db: db}
}

// ListAll returns every flashpoint in table.
func (r *FlashpointsRepository) ListAll(ctx context.Context, table string) ([]model.Flashpoint, error) {
	quoted, err := QuoteIdentifier(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT flashpoint_id, title, description, domain_hints FROM %s`, quoted)

	var out []model.Flashpoint
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list flashpoints from %s: %w", table, err)
	}
	return out, nil
}
