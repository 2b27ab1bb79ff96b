// Package keyvault stores double-encrypted private keys on behalf of
// accounts, scoped either to the account server itself or to a game-server
// group identified by its registered public key.
//
// The blobs are opaque: the outer envelope is wrapped client-side (password
// derived for the server scope, group material for group scopes) and this
// service never holds a decryption capability.
package keyvault

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/logging"
	"github.com/dkrasnov/accountd/internal/server/accounts"
	"github.com/dkrasnov/accountd/internal/server/sessions"
)

// Authenticator is the capability check every custody operation passes
// through. Implemented by sessions.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, proof sessions.Proof) (*sessions.Identity, error)
}

type Service struct {
	repo     Repository
	accounts accounts.Repository
	auth     Authenticator
	logger   logging.Logger
}

func NewService(repo Repository, accountRepo accounts.Repository, auth Authenticator, logger logging.Logger) *Service {
	return &Service{
		repo:     repo,
		accounts: accountRepo,
		auth:     auth,
		logger:   logger.With("module", "keyvault"),
	}
}

// StoreKey writes or overwrites the custody record of the authenticated
// account under the resolved scope.
//
// A nil scopePubKey selects the server scope and requires the account to be
// verified; declaredPubKey must accompany the blob there, since it is the
// handle other accounts use to address this account as a group. A non-nil
// scopePubKey selects a group scope: it must resolve to a registered group
// (no fallback to the server scope) and the account needs both verification
// flags.
func (s *Service) StoreKey(ctx context.Context, proof sessions.Proof, scopePubKey, keyBlob, declaredPubKey []byte) error {
	if len(keyBlob) == 0 {
		return fmt.Errorf("%w: empty key blob", common.ErrValidation)
	}

	identity, err := s.auth.Authenticate(ctx, proof)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, identity.AccountID)
	if err != nil {
		return err
	}

	if scopePubKey == nil {
		if !account.Verified {
			return common.ErrForbidden
		}
		if len(declaredPubKey) == 0 {
			return fmt.Errorf("%w: server-scoped keys declare a public key", common.ErrValidation)
		}
		return s.repo.UpsertServerKey(ctx, account.ID, keyBlob, declaredPubKey)
	}

	if !account.Verified || !account.VerifiedGameServer {
		return common.ErrForbidden
	}

	groupID, err := s.repo.ResolveGroupByPubKey(ctx, scopePubKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// fail closed: an unknown group never silently degrades to the
			// server scope
			return common.ErrScopeNotFound
		}
		return err
	}

	return s.repo.UpsertGroupKey(ctx, account.ID, groupID, keyBlob)
}

// FetchKey returns the blob stored for the authenticated account under the
// resolved scope. A missing record is common.ErrNoRecord — never to be
// conflated with an authentication failure, so the client can tell "never
// stored a key" apart from "wrong session".
func (s *Service) FetchKey(ctx context.Context, proof sessions.Proof, scopePubKey []byte) ([]byte, error) {
	identity, err := s.auth.Authenticate(ctx, proof)
	if err != nil {
		return nil, err
	}

	if scopePubKey == nil {
		key, err := s.repo.GetServerKey(ctx, identity.AccountID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.ErrNoRecord
			}
			return nil, err
		}
		return key.KeyBlob, nil
	}

	groupID, err := s.repo.ResolveGroupByPubKey(ctx, scopePubKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrScopeNotFound
		}
		return nil, err
	}

	key, err := s.repo.GetGroupKey(ctx, identity.AccountID, groupID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNoRecord
		}
		return nil, err
	}
	return key.KeyBlob, nil
}
