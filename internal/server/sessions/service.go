package sessions

import (
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/cryptox"
	"github.com/dkrasnov/accountd/internal/logging"
	"github.com/dkrasnov/accountd/internal/server/accounts"
	"github.com/dkrasnov/accountd/internal/server/auth"
	"github.com/dkrasnov/accountd/internal/server/email"
	"github.com/dkrasnov/accountd/internal/server/tokens"
)

// LoginResult is handed to the client once, at session creation. The
// session secret is never returned again by any other operation.
type LoginResult struct {
	AccountID           int64
	SessionSecret       []byte
	EncryptedMainSecret []byte
}

// Service implements login token issuance, session establishment and the
// authenticate/sign capability checks.
type Service struct {
	repo          Repository
	accounts      accounts.Repository
	ledger        tokens.Store
	mailer        email.Mailer
	signer        *auth.Signer
	logger        logging.Logger
	tokenValidity time.Duration
	baseURL       string
}

func NewService(repo Repository, accountRepo accounts.Repository, ledger tokens.Store,
	mailer email.Mailer, signer *auth.Signer, logger logging.Logger,
	tokenValidity time.Duration, baseURL string) *Service {
	return &Service{
		repo:          repo,
		accounts:      accountRepo,
		ledger:        ledger,
		mailer:        mailer,
		signer:        signer,
		logger:        logger.With("module", "sessions"),
		tokenValidity: tokenValidity,
		baseURL:       baseURL,
	}
}

// IssueLoginToken creates a pre-authentication login token for the bare
// identifier. Email tokens are delivered out of band and the value is not
// reported back; external (Steam-style) tokens are returned to the caller,
// which relays them through the external identity handshake.
func (s *Service) IssueLoginToken(ctx context.Context, identifier string, kind tokens.IdentifierKind) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("%w: empty identifier", common.ErrValidation)
	}

	rec := &tokens.Record{
		Value:          cryptox.NewTokenValue(),
		Kind:           tokens.KindLogin,
		Identifier:     identifier,
		IdentifierKind: kind,
		ExpiresAt:      time.Now().UTC().Add(s.tokenValidity),
	}
	if err := s.ledger.Put(ctx, rec); err != nil {
		return "", err
	}

	if kind == tokens.IdentifierEmail {
		body := fmt.Sprintf("To log into your account please open this link:\n%s/login?token=%s", s.baseURL, rec.Value)
		if err := s.mailer.Send(ctx, identifier, "Account login", body); err != nil {
			// the token stands; the user can request another one
			s.logger.Warn(ctx, "login mail delivery failed", "error", err.Error())
		}
		return "", nil
	}

	return rec.Value, nil
}

// RedeemLoginToken consumes a login token and establishes a session for the
// device. Steam identities are provisioned on first redemption; email
// identities must already have registered.
func (s *Service) RedeemLoginToken(ctx context.Context, tokenValue string, pubKey, hwID []byte) (*LoginResult, error) {
	rec, err := s.ledger.Consume(ctx, tokenValue, tokens.KindLogin)
	if err != nil {
		return nil, err
	}

	var account *accounts.Account
	switch rec.IdentifierKind {
	case tokens.IdentifierSteam:
		id, err := s.accounts.CreateSteamIfAbsent(ctx, rec.Identifier)
		if err != nil {
			return nil, err
		}
		account, err = s.accounts.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
	case tokens.IdentifierEmail:
		account, err = s.accounts.GetByEmail(ctx, rec.Identifier)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.ErrUnauthenticated
			}
			return nil, err
		}
	default:
		return nil, common.ErrTokenInvalid
	}

	return s.establish(ctx, account, pubKey, hwID)
}

// LoginWithPassword establishes a session from email credentials. A wrong
// email and a wrong password are indistinguishable to the caller.
func (s *Service) LoginWithPassword(ctx context.Context, emailAddr string, passwordHash, pubKey, hwID []byte) (*LoginResult, error) {
	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	if len(account.PasswordHash) == 0 {
		// Steam-only account, no password credential
		return nil, common.ErrUnauthenticated
	}

	candidate := cryptox.HashWithSalt(passwordHash, account.Salt)
	if subtle.ConstantTimeCompare(candidate, account.PasswordHash) != 1 {
		return nil, common.ErrUnauthenticated
	}

	return s.establish(ctx, account, pubKey, hwID)
}

func (s *Service) establish(ctx context.Context, account *accounts.Account, pubKey, hwID []byte) (*LoginResult, error) {
	if len(pubKey) == 0 || len(hwID) == 0 {
		return nil, fmt.Errorf("%w: missing session identity", common.ErrValidation)
	}

	secret := cryptox.NewSessionSecret()
	session := &Session{
		AccountID: account.ID,
		PubKey:    pubKey,
		HwID:      hwID,
		Secret:    secret,
	}
	if err := s.repo.Upsert(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "session established", "account_id", account.ID)

	return &LoginResult{
		AccountID:           account.ID,
		SessionSecret:       secret,
		EncryptedMainSecret: account.EncryptedMainSecret,
	}, nil
}

// Authenticate is the single choke point for privileged calls: the proof
// must match a live session on both fields exactly.
func (s *Service) Authenticate(ctx context.Context, proof Proof) (*Identity, error) {
	session, err := s.repo.Get(ctx, proof.PubKey, proof.HwID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	return &Identity{AccountID: account.ID, CreatedAt: account.CreatedAt}, nil
}

// Sign authenticates the proof and issues a signed session certificate for
// game servers to verify offline.
func (s *Service) Sign(ctx context.Context, proof Proof) (string, error) {
	identity, err := s.Authenticate(ctx, proof)
	if err != nil {
		return "", err
	}
	return s.signer.Sign(identity.AccountID, identity.CreatedAt)
}

// VerificationKey returns the public key certificates are checked against.
// Game servers fetch and pin it.
func (s *Service) VerificationKey() ed25519.PublicKey {
	return s.signer.PublicKey()
}

// Logout removes the matching session. An absent session is fine: the
// intended end state holds either way.
func (s *Service) Logout(ctx context.Context, proof Proof) error {
	return s.repo.Delete(ctx, proof.PubKey, proof.HwID)
}
