package bruteforce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pushrelay/internal/common"
	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Sweep(ctx context.Context, now int64, windowSeconds int64) error {
	unblock :=
		`UPDATE bruteforce SET blocked_until = 0, fail_count = 0
		 WHERE blocked_until <> 0 AND blocked_until < $1
		 `

	if _, err := r.db.ExecContext(ctx, unblock, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	expire :=
		`UPDATE bruteforce SET fail_count = 0
		 WHERE last_attempt < $1
		 `

	if _, err := r.db.ExecContext(ctx, expire, now-windowSeconds); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, accountID int64, sourceAddr string) (*models.BruteforceRecord, error) {
	query :=
		`SELECT id, account_id, source_address, fail_count, last_attempt, blocked_until FROM bruteforce
		 WHERE account_id = $1 AND source_address = $2
		 FOR UPDATE
		 `

	rec := &models.BruteforceRecord{}
	err := r.db.QueryRowContext(ctx, query, accountID, sourceAddr).
		Scan(&rec.ID, &rec.AccountID, &rec.SourceAddr, &rec.FailCount, &rec.LastAttempt, &rec.BlockedUntil)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) RecordFailure(ctx context.Context, accountID int64, sourceAddr string, now int64) (int, error) {
	query :=
		`INSERT INTO bruteforce (account_id, source_address, fail_count, last_attempt, blocked_until)
		 VALUES ($1, $2, 1, $3, 0)
		 ON CONFLICT (account_id, source_address)
		 DO UPDATE SET fail_count = bruteforce.fail_count + 1, last_attempt = $3
		 RETURNING fail_count
		 `

	var count int
	if err := r.db.QueryRowContext(ctx, query, accountID, sourceAddr, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) Block(ctx context.Context, accountID int64, sourceAddr string, until int64) error {
	query :=
		`UPDATE bruteforce SET blocked_until = $3
		 WHERE account_id = $1 AND source_address = $2
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, sourceAddr, until); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID int64) error {
	query := `DELETE FROM bruteforce WHERE account_id = $1`

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
