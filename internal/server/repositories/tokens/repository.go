package tokens

import "context"

// Session tokens are minted by the registration website; the relay only
// consumes them, deleting expired rows and using a live token as a guard
// against purging an inactive account.
type Repository interface {
	// DeleteExpired removes tokens whose expiration lies before now.
	DeleteExpired(ctx context.Context, now int64) error

	// CountForAccount returns the number of tokens the account still holds.
	CountForAccount(ctx context.Context, accountID int64) (int, error)
}
