package acl

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/protocol"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, accountID int64) ([]protocol.Capability, error) {
	query := `SELECT capability FROM acl WHERE account_id = $1`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var capabilities []protocol.Capability
	for rows.Next() {
		var c protocol.Capability
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		capabilities = append(capabilities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return capabilities, nil
}

func (r *PostgresRepository) Grant(ctx context.Context, accountID int64, capability protocol.Capability) error {
	query :=
		`INSERT INTO acl (account_id, capability)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, capability); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID int64) error {
	query := `DELETE FROM acl WHERE account_id = $1`

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
