package pushdata

import (
	"context"

	"github.com/dmitrijs2005/pushrelay/internal/server/models"
)

type Repository interface {
	// Exists reports whether a deferred payload with the given id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Create stores a deferred payload under its opaque id.
	Create(ctx context.Context, payload *models.DeferredPayload) error

	// DeleteOlderThan purges payloads with a timestamp before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff int64) error

	// DeleteForAccount removes all payloads of the account.
	DeleteForAccount(ctx context.Context, accountID int64) error
}
