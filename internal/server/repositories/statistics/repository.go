package statistics

import (
	"context"

	"github.com/dmitrijs2005/pushrelay/internal/server/models"
)

type Repository interface {
	// Add appends one send statistic.
	Add(ctx context.Context, rec *models.StatisticRecord) error

	// DeleteOlderThan purges records with a timestamp before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff int64) error

	// DeleteForAccount removes all records of the account.
	DeleteForAccount(ctx context.Context, accountID int64) error
}
