package keyvault

import "context"

type Repository interface {
	// UpsertServerKey writes or overwrites the account's server-scoped
	// custody record.
	UpsertServerKey(ctx context.Context, accountID int64, keyBlob, pubKey []byte) error

	// GetServerKey returns the server-scoped record or common.ErrNotFound.
	GetServerKey(ctx context.Context, accountID int64) (*ServerKey, error)

	// ResolveGroupByPubKey maps a game-server group's declared public key
	// to the owning account id, or common.ErrNotFound.
	ResolveGroupByPubKey(ctx context.Context, pubKey []byte) (int64, error)

	// UpsertGroupKey writes or overwrites the blob for (account, group).
	UpsertGroupKey(ctx context.Context, accountID, groupID int64, keyBlob []byte) error

	// GetGroupKey returns the blob for (account, group) or common.ErrNotFound.
	GetGroupKey(ctx context.Context, accountID, groupID int64) (*GroupKey, error)

	// DeleteByAccount removes every custody record of the account, in both
	// tables.
	DeleteByAccount(ctx context.Context, accountID int64) error
}
