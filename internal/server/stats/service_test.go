package stats

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pushrelay/internal/common"
	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/repomanager"
)

type fakeOpener struct {
	db *sql.DB
}

func (f *fakeOpener) Open(ctx context.Context) (*sql.DB, error) {
	return f.db, nil
}

func newServiceWithMock(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := NewService(&fakeOpener{db: db}, repomanager.NewPostgresRepositoryManager(), logger)
	svc.now = func() time.Time { return time.Unix(1000, 0) }
	return svc, mock
}

func TestRecord_Success(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*identifier,\s*active\s+FROM\s+accounts`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identifier", "active"}).
			AddRow(int64(7), "alice@example.com", true))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+statistics`).
		WithArgs(int64(7), "10.0.0.5", "alerts", int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	err := svc.Record(context.Background(), "alice@example.com", "10.0.0.5", "alerts")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_VanishedAccount(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*identifier,\s*active\s+FROM\s+accounts`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectClose()

	err := svc.Record(context.Background(), "ghost@example.com", "10.0.0.5", "alerts")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecord_DBError(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*identifier,\s*active\s+FROM\s+accounts`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identifier", "active"}).
			AddRow(int64(7), "alice@example.com", true))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+statistics`).
		WillReturnError(errors.New("db down"))
	mock.ExpectClose()

	err := svc.Record(context.Background(), "alice@example.com", "10.0.0.5", "alerts")
	require.Error(t, err)
}
