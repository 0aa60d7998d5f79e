package accounts

import (
	"context"

	"github.com/dmitrijs2005/pushrelay/internal/server/models"
)

type Repository interface {
	// GetActiveByIdentifier resolves an identifier to its account, requiring
	// active = true. The match is case-sensitive.
	GetActiveByIdentifier(ctx context.Context, identifier string) (*models.Account, error)

	// ListInactiveIDs returns the ids of all deactivated accounts.
	ListInactiveIDs(ctx context.Context) ([]int64, error)

	// Create inserts a new active account and returns its id.
	Create(ctx context.Context, identifier string) (int64, error)

	// Delete removes the account row itself. Dependent rows must already be
	// gone; see the cleaner's purge cascade.
	Delete(ctx context.Context, id int64) error
}
