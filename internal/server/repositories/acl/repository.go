package acl

import (
	"context"

	"github.com/dmitrijs2005/pushrelay/internal/protocol"
)

type Repository interface {
	// List returns the capabilities granted to the account. A missing row
	// is not an error; the result is simply empty.
	List(ctx context.Context, accountID int64) ([]protocol.Capability, error)

	// Grant adds a capability to the account.
	Grant(ctx context.Context, accountID int64, capability protocol.Capability) error

	// DeleteForAccount removes all of the account's capabilities.
	DeleteForAccount(ctx context.Context, accountID int64) error
}
