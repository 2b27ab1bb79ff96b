package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/cryptox"
	"github.com/dkrasnov/accountd/internal/logging"
	"github.com/dkrasnov/accountd/internal/server/email"
	"github.com/dkrasnov/accountd/internal/server/tokens"
)

// SessionWiper removes every live session of an account. Implemented by the
// sessions repository; declared here so the reset flow does not depend on
// that package.
type SessionWiper interface {
	DeleteByAccount(ctx context.Context, accountID int64) error
}

// KeyWiper removes every custody record of an account. Implemented by the
// keyvault repository.
type KeyWiper interface {
	DeleteByAccount(ctx context.Context, accountID int64) error
}

type RegisterParams struct {
	Email               string
	PasswordHash        []byte
	Salt                []byte
	EncryptedMainSecret []byte
}

type RegisterResult struct {
	Account *Account
	// MailSent is false when the account was created but the verification
	// mail could not be delivered (degraded success).
	MailSent bool
}

// Service orchestrates the credential store, the token ledger and mail
// delivery for registration, verification and password reset.
type Service struct {
	repo          Repository
	ledger        tokens.Store
	mailer        email.Mailer
	sessions      SessionWiper
	keys          KeyWiper
	logger        logging.Logger
	tokenValidity time.Duration
	baseURL       string
}

func NewService(repo Repository, ledger tokens.Store, mailer email.Mailer,
	sessions SessionWiper, keys KeyWiper, logger logging.Logger,
	tokenValidity time.Duration, baseURL string) *Service {
	return &Service{
		repo:          repo,
		ledger:        ledger,
		mailer:        mailer,
		sessions:      sessions,
		keys:          keys,
		logger:        logger.With("module", "accounts"),
		tokenValidity: tokenValidity,
		baseURL:       baseURL,
	}
}

// Register creates an unverified account and issues its verification token.
// A duplicate email fails with common.ErrConflict and creates nothing. Mail
// delivery failure does not undo the account: it is surfaced via
// RegisterResult.MailSent.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*RegisterResult, error) {
	if p.Email == "" || len(p.PasswordHash) == 0 || len(p.Salt) == 0 || len(p.EncryptedMainSecret) == 0 {
		return nil, fmt.Errorf("%w: missing registration fields", common.ErrValidation)
	}

	account := &Account{
		Email:               p.Email,
		PasswordHash:        cryptox.HashWithSalt(p.PasswordHash, p.Salt),
		Salt:                p.Salt,
		EncryptedMainSecret: p.EncryptedMainSecret,
	}

	account, err := s.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	mailSent := s.issueAndMail(ctx, tokens.KindVerify, account.ID, p.Email,
		"Account registration",
		"To finish the registration of your account please open this link:\n%s/verify?token=%s")

	return &RegisterResult{Account: account, MailSent: mailSent}, nil
}

// Verify consumes a verification token and flips the verified flag. The
// consume is atomic, so a second redemption of the same token fails with
// common.ErrTokenInvalid instead of re-verifying.
//
// The consume and the flag update span the ledger and the database: a
// failed update after a successful consume leaves the token burnt and the
// account unverified. RequestVerification issues a fresh token for that
// case.
func (s *Service) Verify(ctx context.Context, tokenValue string) error {
	rec, err := s.ledger.Consume(ctx, tokenValue, tokens.KindVerify)
	if err != nil {
		return err
	}
	return s.repo.SetVerified(ctx, rec.AccountID)
}

// RequestVerification re-issues the verification token for an account that
// never completed the registration step. An already verified account fails
// with common.ErrConflict.
func (s *Service) RequestVerification(ctx context.Context, emailAddr string) error {
	account, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if account.Verified {
		return common.ErrConflict
	}

	if !s.issueAndMail(ctx, tokens.KindVerify, account.ID, emailAddr,
		"Account registration",
		"To finish the registration of your account please open this link:\n%s/verify?token=%s") {
		return fmt.Errorf("verification mail was not delivered")
	}
	return nil
}

// RequestGameServerVerification starts the stricter second verification
// step. Only an already verified email account qualifies.
func (s *Service) RequestGameServerVerification(ctx context.Context, emailAddr string) error {
	account, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return err
	}
	if !account.Verified {
		return common.ErrForbidden
	}

	if !s.issueAndMail(ctx, tokens.KindVerifyGameServer, account.ID, emailAddr,
		"Game server verification",
		"To verify your account for game servers please open this link:\n%s/verify-game-server?token=%s") {
		return fmt.Errorf("verification mail was not delivered")
	}
	return nil
}

// VerifyGameServer consumes a game-server verification token and flips the
// stricter flag.
func (s *Service) VerifyGameServer(ctx context.Context, tokenValue string) error {
	rec, err := s.ledger.Consume(ctx, tokenValue, tokens.KindVerifyGameServer)
	if err != nil {
		return err
	}
	return s.repo.SetGameServerVerified(ctx, rec.AccountID)
}

// RequestReset issues a password-reset token. Unknown emails succeed
// silently: the response never reveals whether an account exists, and mail
// delivery failures are only logged for the same reason.
func (s *Service) RequestReset(ctx context.Context, emailAddr string) error {
	account, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}

	if !s.issueAndMail(ctx, tokens.KindReset, account.ID, emailAddr,
		"Password reset",
		"To reset the password of your account please open this link:\n%s/password-reset?token=%s") {
		s.logger.Warn(ctx, "reset mail not delivered", "account_id", account.ID)
	}
	return nil
}

// ApplyReset consumes a reset token and replaces the credential triple in a
// single statement. Resetting is close to an account reset, so all sessions
// and custody keys are cleared afterwards; those cleanups are best-effort.
func (s *Service) ApplyReset(ctx context.Context, tokenValue string, newHash, newSalt, newSecret []byte) error {
	if len(newHash) == 0 || len(newSalt) == 0 || len(newSecret) == 0 {
		return fmt.Errorf("%w: missing credential fields", common.ErrValidation)
	}

	rec, err := s.ledger.Consume(ctx, tokenValue, tokens.KindReset)
	if err != nil {
		return err
	}

	stored := cryptox.HashWithSalt(newHash, newSalt)
	if err := s.repo.ReplaceCredentials(ctx, rec.AccountID, stored, newSalt, newSecret); err != nil {
		return err
	}

	if err := s.sessions.DeleteByAccount(ctx, rec.AccountID); err != nil {
		s.logger.Warn(ctx, "session cleanup after reset failed", "account_id", rec.AccountID, "error", err.Error())
	}
	if err := s.keys.DeleteByAccount(ctx, rec.AccountID); err != nil {
		s.logger.Warn(ctx, "key cleanup after reset failed", "account_id", rec.AccountID, "error", err.Error())
	}

	return nil
}

// issueAndMail writes a token to the ledger and hands it to the mailer.
// Returns whether the mail went out; ledger failures also report false.
func (s *Service) issueAndMail(ctx context.Context, kind tokens.Kind, accountID int64, to, subject, bodyFormat string) bool {
	rec := &tokens.Record{
		Value:     cryptox.NewTokenValue(),
		Kind:      kind,
		AccountID: accountID,
		ExpiresAt: time.Now().UTC().Add(s.tokenValidity),
	}

	if err := s.ledger.Put(ctx, rec); err != nil {
		s.logger.Error(ctx, "token issue failed", "kind", string(kind), "error", err.Error())
		return false
	}

	body := fmt.Sprintf(bodyFormat, s.baseURL, rec.Value)
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		s.logger.Warn(ctx, "mail delivery failed", "kind", string(kind), "error", err.Error())
		return false
	}
	return true
}
