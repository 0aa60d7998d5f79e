package bruteforce

import (
	"context"

	"github.com/dmitrijs2005/pushrelay/internal/server/models"
)

type Repository interface {
	// Sweep resets aged state across all records: a record whose non-zero
	// blocked_until lies in the past loses both its block and its counter,
	// and a record whose last attempt is older than windowSeconds loses its
	// counter regardless of block state.
	Sweep(ctx context.Context, now int64, windowSeconds int64) error

	// GetForUpdate returns the record for (account, source address),
	// locking the row for the rest of the transaction so that concurrent
	// attempts against the same pair serialize.
	GetForUpdate(ctx context.Context, accountID int64, sourceAddr string) (*models.BruteforceRecord, error)

	// RecordFailure upserts a failed attempt for the pair and returns the
	// resulting fail count. A fresh pair starts at 1.
	RecordFailure(ctx context.Context, accountID int64, sourceAddr string, now int64) (int, error)

	// Block sets blocked_until for the pair.
	Block(ctx context.Context, accountID int64, sourceAddr string, until int64) error

	// DeleteForAccount removes all records of the account.
	DeleteForAccount(ctx context.Context, accountID int64) error
}
