package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pushrelay/internal/common"
	"github.com/dmitrijs2005/pushrelay/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetHash(ctx context.Context, accountID int64) (string, error) {
	query := `SELECT password_hash FROM credentials WHERE account_id = $1`

	var hash string
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&hash)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return hash, nil
}

func (r *PostgresRepository) Create(ctx context.Context, accountID int64, passwordHash string) error {
	query :=
		`INSERT INTO credentials (account_id, password_hash)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, passwordHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID int64) error {
	query := `DELETE FROM credentials WHERE account_id = $1`

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
