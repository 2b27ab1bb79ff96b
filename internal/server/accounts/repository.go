package accounts

import (
	"context"
)

type Repository interface {
	// Create inserts an email account with its credential triple. Returns
	// common.ErrConflict when the email is already taken.
	Create(ctx context.Context, account *Account) (*Account, error)

	// CreateSteamIfAbsent provisions a bare Steam account on first login
	// and returns its id; an existing account is returned as-is.
	CreateSteamIfAbsent(ctx context.Context, steamID string) (int64, error)

	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// SetVerified flips the plain verification flag.
	SetVerified(ctx context.Context, id int64) error

	// SetGameServerVerified flips the stricter game-server flag.
	SetGameServerVerified(ctx context.Context, id int64) error

	// ReplaceCredentials atomically overwrites hash, salt and encrypted
	// main secret in a single statement.
	ReplaceCredentials(ctx context.Context, id int64, passwordHash, salt, encryptedMainSecret []byte) error
}
