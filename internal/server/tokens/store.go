// Package tokens implements the ephemeral token ledger: short-lived,
// single-use credentials backing verification, login and password-reset
// flows.
//
// The ledger contract is what matters, not the storage engine: Put is an
// atomic insert-if-absent, Consume is an atomic consume-if-valid. When
// several callers race on the same token value exactly one Consume
// succeeds; the rest observe common.ErrTokenInvalid.
package tokens

import (
	"context"
	"time"
)

// Kind classifies a token by the single state change it may authorize.
type Kind string

const (
	// KindVerify marks email-verification tokens issued at registration.
	KindVerify Kind = "verify"
	// KindVerifyGameServer marks the stricter game-server verification tokens.
	KindVerifyGameServer Kind = "verify-gs"
	// KindLogin marks pre-authentication login tokens (email magic link or
	// external identity handshake).
	KindLogin Kind = "login"
	// KindReset marks password-reset tokens.
	KindReset Kind = "reset"
)

// IdentifierKind tells what a pre-account login token identifies.
type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierSteam IdentifierKind = "steam"
)

// Record is one ledger entry. Exactly one of AccountID or Identifier is
// meaningful: verification and reset tokens are bound to an existing
// account id, login tokens carry a bare identifier resolved at redemption.
type Record struct {
	Value          string
	Kind           Kind
	AccountID      int64
	Identifier     string
	IdentifierKind IdentifierKind
	ExpiresAt      time.Time
}

// Store is the ledger capability interface.
type Store interface {
	// Put inserts the record, failing with common.ErrConflict if a live
	// record with the same value already exists.
	Put(ctx context.Context, rec *Record) error

	// Consume atomically removes and returns the record for value. It fails
	// with common.ErrTokenInvalid when the record is absent, expired,
	// already consumed, or of a different kind.
	Consume(ctx context.Context, value string, kind Kind) (*Record, error)
}
