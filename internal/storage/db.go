package storage

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	sharederrors "github.com/AteetVatan/masx-geosignal/pkg/shared/errors"
)

// Connect opens a bounded-pool sqlx.DB over pgx's database/sql driver.
func Connect(cfg config.StorageConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return nil, sharederrors.FailedToWithDetails("connect", "storage", "postgres", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}
