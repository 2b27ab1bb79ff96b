// Package auth issues signed session certificates. A certificate proves to
// a third party (a game server) that the account server authenticated the
// given account, without another round trip. Certificates are EdDSA-signed
// JWTs verifiable offline against the server's public key.
package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a session certificate: the account id in Subject plus
// the account creation time.
type Claims struct {
	jwt.RegisteredClaims
	AccountCreatedAt int64 `json:"account_created_at"`
}

type Signer struct {
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	validity time.Duration
}

func NewSigner(priv ed25519.PrivateKey, validity time.Duration) *Signer {
	return &Signer{
		priv:     priv,
		pub:      priv.Public().(ed25519.PublicKey),
		validity: validity,
	}
}

// Sign issues a certificate for the account.
func (s *Signer) Sign(accountID int64, accountCreatedAt time.Time) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
		AccountCreatedAt: accountCreatedAt.UTC().Unix(),
	})

	return token.SignedString(s.priv)
}

// PublicKey returns the verification key game servers should pin.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Verify parses a certificate against the signer's own public key. Used by
// tests and by deployments colocating verification.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

type keyFile struct {
	Seed string `json:"seed"`
}

// LoadOrCreateKey reads the signing key from path, generating and persisting
// a fresh one on first start.
func LoadOrCreateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var kf keyFile
		if err := json.Unmarshal(data, &kf); err != nil {
			return nil, fmt.Errorf("parse signing key file: %w", err)
		}
		seed, err := hex.DecodeString(kf.Seed)
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("invalid signing key seed in %s", path)
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(keyFile{Seed: hex.EncodeToString(priv.Seed())})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("persist signing key: %w", err)
	}

	return priv, nil
}
