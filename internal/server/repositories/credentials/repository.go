package credentials

import "context"

type Repository interface {
	// GetHash returns the stored password hash of the account. The hash
	// embeds its own salt and cost parameters.
	GetHash(ctx context.Context, accountID int64) (string, error)

	// Create stores the password hash for a new account.
	Create(ctx context.Context, accountID int64, passwordHash string) error

	// DeleteForAccount removes the account's credential.
	DeleteForAccount(ctx context.Context, accountID int64) error
}
