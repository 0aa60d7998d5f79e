package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/server/migrations"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/acl"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/bruteforce"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/pushdata"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/statistics"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/tokens"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) ACL(db dbx.DBTX) acl.Repository {
	return acl.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Bruteforce(db dbx.DBTX) bruteforce.Repository {
	return bruteforce.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Statistics(db dbx.DBTX) statistics.Repository {
	return statistics.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Payloads(db dbx.DBTX) pushdata.Repository {
	return pushdata.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tokens(db dbx.DBTX) tokens.Repository {
	return tokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
