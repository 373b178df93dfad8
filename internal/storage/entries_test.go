package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

func newTestEntriesRepo(t *testing.T) (*EntriesRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewEntriesRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestEntriesRepository_SelectUnprocessed(t *testing.T) {
	repo, mock := newTestEntriesRepo(t)
	rows := sqlmock.NewRows([]string{"entry_id", "url", "title", "language", "domain", "flashpoint_id", "seen_at"}).
		AddRow("e1", "https://example.com/a", "Title A", "en", "example.com", "fp-1", time.Time{})
	mock.ExpectQuery(`SELECT entry_id, url, title, language, domain, flashpoint_id, seen_at FROM "feed_entries_20260731"`).
		WithArgs(10000).
		WillReturnRows(rows)

	entries, err := repo.SelectUnprocessed(context.Background(), "feed_entries_20260731", 10000)
	if err != nil {
		t.Fatalf("SelectUnprocessed() error = %v", err)
	}
	if len(entries) != 1 || entries[0].EntryID != "e1" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestEntriesRepository_SelectUnprocessed_InvalidTable(t *testing.T) {
	repo, _ := newTestEntriesRepo(t)
	_, err := repo.SelectUnprocessed(context.Background(), "feed_entries; DROP TABLE x", 10)
	if err == nil {
		t.Fatal("expected error for invalid table name")
	}
}

func TestEntriesRepository_WriteEnrichment(t *testing.T) {
	repo, mock := newTestEntriesRepo(t)
	mock.ExpectExec(`UPDATE "feed_entries_20260731" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.WriteEnrichment(context.Background(), "feed_entries_20260731", Enrichment{
		EntryID:  "e1",
		TitleEN:  "Title A",
		Hostname: "example.com",
		Content:  "full article text",
		Entities: model.NEREntities{Classes: map[string][]string{}},
	})
	if err != nil {
		t.Fatalf("WriteEnrichment() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEntriesRepository_UpdateSummary(t *testing.T) {
	repo, mock := newTestEntriesRepo(t)
	mock.ExpectExec(`UPDATE "feed_entries_20260731" SET summary`).
		WithArgs("a short summary", "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSummary(context.Background(), "feed_entries_20260731", "e1", "a short summary")
	if err != nil {
		t.Fatalf("UpdateSummary() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStringArray(t *testing.T) {
	if got := stringArray(nil); got != "{}" {
		t.Errorf("stringArray(nil) = %q", got)
	}
	if got := stringArray([]string{"a", `b"c`}); got != `{"a","b\"c"}` {
		t.Errorf("stringArray(...) = %q", got)
	}
}
