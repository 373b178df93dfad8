package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

func newTestTopicsRepo(t *testing.T) (*TopicsRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewTopicsRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestTopicsRepository_Upsert(t *testing.T) {
	repo, mock := newTestTopicsRepo(t)
	mock.ExpectExec("INSERT INTO feed_entry_topics").
		WithArgs("entry-1", "military").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &model.FeedEntryTopic{EntryID: "entry-1", Topic: "military"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}
