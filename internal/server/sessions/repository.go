package sessions

import "context"

type Repository interface {
	// Upsert inserts the session, replacing any prior session stored under
	// the same public key.
	Upsert(ctx context.Context, session *Session) error

	// Get returns the session matching both the public key and the
	// hardware id exactly, or common.ErrNotFound.
	Get(ctx context.Context, pubKey, hwID []byte) (*Session, error)

	// Delete removes the matching session. Removing an absent session is
	// not an error.
	Delete(ctx context.Context, pubKey, hwID []byte) error

	// DeleteByAccount removes every session of the account.
	DeleteByAccount(ctx context.Context, accountID int64) error
}
