package accounts

import "time"

// Account is the identity anchor. Exactly one of Email or SteamID is set.
// PasswordHash, Salt and EncryptedMainSecret are present together or absent
// together: a Steam-only account carries none of them.
type Account struct {
	ID                  int64
	Email               string
	SteamID             string
	PasswordHash        []byte
	Salt                []byte
	EncryptedMainSecret []byte
	Verified            bool
	VerifiedGameServer  bool
	CreatedAt           time.Time
}
