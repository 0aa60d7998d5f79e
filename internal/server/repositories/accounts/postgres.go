package accounts

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

func (r *PostgresRepository) GetActiveByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	query :=
		`SELECT id, identifier, active FROM accounts
		 WHERE identifier = $1 AND active = TRUE
		 `

	account := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, identifier).Scan(&account.ID, &account.Identifier, &account.Active)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) ListInactiveIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM accounts WHERE active = FALSE`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ids, nil
}

func (r *PostgresRepository) Create(ctx context.Context, identifier string) (int64, error) {
	query :=
		`INSERT INTO accounts (identifier, active)
		 VALUES ($1, TRUE)
		 RETURNING id
		 `

	var id int64
	if err := r.db.QueryRowContext(ctx, query, identifier).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM accounts WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
