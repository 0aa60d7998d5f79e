package statistics

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, rec *models.StatisticRecord) error {
	query :=
		`INSERT INTO statistics (account_id, source_address, channel, timestamp)
		 VALUES ($1, $2, $3, $4)
		 `

	if _, err := r.db.ExecContext(ctx, query, rec.AccountID, rec.SourceAddr, rec.Channel, rec.Timestamp); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff int64) error {
	query := `DELETE FROM statistics WHERE timestamp < $1`

	if _, err := r.db.ExecContext(ctx, query, cutoff); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID int64) error {
	query := `DELETE FROM statistics WHERE account_id = $1`

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
