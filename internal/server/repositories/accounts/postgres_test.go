package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/pushrelay/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestGetActiveByIdentifier_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*identifier,\s*active\s+FROM\s+accounts\s+WHERE\s+identifier\s*=\s*\$1\s+AND\s+active\s*=\s*TRUE\s*$`

	rows := sqlmock.NewRows([]string{"id", "identifier", "active"}).
		AddRow(int64(7), "alice@example.com", true)
	mock.ExpectQuery(q).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	got, err := repo.GetActiveByIdentifier(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetActiveByIdentifier error: %v", err)
	}
	if got.ID != 7 || got.Identifier != "alice@example.com" || !got.Active {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestGetActiveByIdentifier_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetActiveByIdentifier(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestGetActiveByIdentifier_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("alice@example.com").
		WillReturnError(errors.New("db down"))

	_, err := repo.GetActiveByIdentifier(context.Background(), "alice@example.com")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListInactiveIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id\s+FROM\s+accounts\s+WHERE\s+active\s*=\s*FALSE\s*$`

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(3)).AddRow(int64(9))
	mock.ExpectQuery(q).WillReturnRows(rows)

	ids, err := repo.ListInactiveIDs(context.Background())
	if err != nil {
		t.Fatalf("ListInactiveIDs error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 9 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+accounts\s*\(identifier,\s*active\)\s*VALUES\s*\(\$1,\s*TRUE\)\s*RETURNING\s+id\s*$`

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(42))
	mock.ExpectQuery(q).
		WithArgs("bob@example.com").
		WillReturnRows(rows)

	id, err := repo.Create(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id != 42 {
		t.Fatalf("unexpected id: %d", id)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), 42); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
