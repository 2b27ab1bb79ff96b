// Package cryptox provides the small cryptographic helpers used by the
// account server: at-rest hardening of client-derived password hashes and
// generation of random token values and session secrets.
//
// The server never sees a raw password. Clients submit an already derived
// hash; HashWithSalt runs that opaque value through Argon2id with the
// account's stored salt so that a database leak does not directly expose
// the client-side derivation output.
package cryptox

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/argon2"
)

// TokenLength is the byte width of every ephemeral token value.
const TokenLength = 32

// HashWithSalt derives the stored password hash from the client-submitted
// hash and the account salt.
func HashWithSalt(passwordHash, salt []byte) []byte {
	return argon2.IDKey(passwordHash, salt, 1, 64*1024, 4, 32)
}

// NewRandBytes returns n cryptographically random bytes.
func NewRandBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return b
}

// NewTokenValue generates a fresh token value, base64url encoded so it is
// safe to embed in email links.
func NewTokenValue() string {
	return base64.URLEncoding.EncodeToString(NewRandBytes(TokenLength))
}

// NewSessionSecret generates the per-session secret handed out at login.
func NewSessionSecret() []byte {
	return NewRandBytes(32)
}
