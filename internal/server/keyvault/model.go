package keyvault

import "time"

// ServerKey is the server-scoped custody record: one per account, carrying
// the encrypted private-key blob together with its declared public key. The
// public key doubles as the lookup handle when the account acts as a
// game-server group.
type ServerKey struct {
	AccountID int64
	KeyBlob   []byte
	PubKey    []byte
	UpdatedAt time.Time
}

// GroupKey is the group-scoped custody record: at most one blob per
// (account, group) pair.
type GroupKey struct {
	AccountID int64
	GroupID   int64
	KeyBlob   []byte
	UpdatedAt time.Time
}
