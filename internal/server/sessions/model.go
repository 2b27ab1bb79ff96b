package sessions

import "time"

// Session is one live device login. PubKey is globally unique: logging in
// again with the same device public key replaces the previous row.
type Session struct {
	AccountID int64
	PubKey    []byte
	HwID      []byte
	Secret    []byte
	CreatedAt time.Time
}

// Proof is the (device public key, hardware id) pair presented on every
// privileged call.
type Proof struct {
	PubKey []byte
	HwID   []byte
}

// Identity is the result of a successful authentication.
type Identity struct {
	AccountID int64
	CreatedAt time.Time
}
