// Package httpapi exposes the account server over HTTP with JSON bodies.
// Byte-valued fields (keys, salts, secrets, blobs) travel base64-encoded,
// which encoding/json applies to []byte automatically.
package httpapi

import (
	"context"
	"crypto/ed25519"

	"github.com/dkrasnov/accountd/internal/logging"
	"github.com/dkrasnov/accountd/internal/server/accounts"
	"github.com/dkrasnov/accountd/internal/server/sessions"
	"github.com/dkrasnov/accountd/internal/server/tokens"
)

// AccountService covers registration, verification and password reset.
type AccountService interface {
	Register(ctx context.Context, p accounts.RegisterParams) (*accounts.RegisterResult, error)
	Verify(ctx context.Context, token string) error
	RequestVerification(ctx context.Context, email string) error
	RequestGameServerVerification(ctx context.Context, email string) error
	VerifyGameServer(ctx context.Context, token string) error
	RequestReset(ctx context.Context, email string) error
	ApplyReset(ctx context.Context, token string, newHash, newSalt, newSecret []byte) error
}

// SessionService covers login, session establishment and the sign flow.
type SessionService interface {
	IssueLoginToken(ctx context.Context, identifier string, kind tokens.IdentifierKind) (string, error)
	RedeemLoginToken(ctx context.Context, token string, pubKey, hwID []byte) (*sessions.LoginResult, error)
	LoginWithPassword(ctx context.Context, email string, passwordHash, pubKey, hwID []byte) (*sessions.LoginResult, error)
	Sign(ctx context.Context, proof sessions.Proof) (string, error)
	VerificationKey() ed25519.PublicKey
	Logout(ctx context.Context, proof sessions.Proof) error
}

// KeyService covers the custody vault.
type KeyService interface {
	StoreKey(ctx context.Context, proof sessions.Proof, scopePubKey, keyBlob, declaredPubKey []byte) error
	FetchKey(ctx context.Context, proof sessions.Proof, scopePubKey []byte) ([]byte, error)
}

// Server bundles the handlers with their dependencies.
type Server struct {
	accounts AccountService
	sessions SessionService
	keys     KeyService
	logger   logging.Logger
}

func NewServer(accountSvc AccountService, sessionSvc SessionService, keySvc KeyService, logger logging.Logger) *Server {
	return &Server{
		accounts: accountSvc,
		sessions: sessionSvc,
		keys:     keySvc,
		logger:   logger.With("module", "httpapi"),
	}
}
