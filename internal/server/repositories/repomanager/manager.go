// Package repomanager vends the per-table repositories of the credential
// store, each bound to the caller's database handle or transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/acl"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/bruteforce"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/pushdata"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/statistics"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/tokens"
)

// RepositoryManager hands out repositories bound to a DBTX. Binding to the
// caller's handle lets a service run several repositories inside one
// transaction.
type RepositoryManager interface {
	Accounts(db dbx.DBTX) accounts.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	ACL(db dbx.DBTX) acl.Repository
	Bruteforce(db dbx.DBTX) bruteforce.Repository
	Statistics(db dbx.DBTX) statistics.Repository
	Payloads(db dbx.DBTX) pushdata.Repository
	Tokens(db dbx.DBTX) tokens.Repository

	RunMigrations(ctx context.Context, db *sql.DB) error
}
