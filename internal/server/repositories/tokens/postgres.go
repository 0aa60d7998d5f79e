package tokens

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pushrelay/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now int64) error {
	query := `DELETE FROM session_tokens WHERE expiration < $1`

	if _, err := r.db.ExecContext(ctx, query, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) CountForAccount(ctx context.Context, accountID int64) (int, error) {
	query := `SELECT COUNT(*) FROM session_tokens WHERE account_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}
