package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, session *Session) error {

	// pub_key is the primary key: a second login from the same device
	// public key evicts the first session
	query :=
		`INSERT INTO sessions (pub_key, account_id, hw_id, secret)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (pub_key) DO UPDATE
		 SET account_id = EXCLUDED.account_id,
		     hw_id = EXCLUDED.hw_id,
		     secret = EXCLUDED.secret,
		     created_at = now()
		 `

	_, err := r.db.ExecContext(ctx, query,
		session.PubKey, session.AccountID, session.HwID, session.Secret)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, pubKey, hwID []byte) (*Session, error) {

	query :=
		`SELECT account_id, pub_key, hw_id, secret, created_at
		 FROM sessions
		 WHERE pub_key = $1 AND hw_id = $2
		 `

	session := &Session{}
	err := r.db.QueryRowContext(ctx, query, pubKey, hwID).Scan(
		&session.AccountID, &session.PubKey, &session.HwID,
		&session.Secret, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return session, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, pubKey, hwID []byte) error {
	query := `DELETE FROM sessions WHERE pub_key = $1 AND hw_id = $2`
	if _, err := r.db.ExecContext(ctx, query, pubKey, hwID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByAccount(ctx context.Context, accountID int64) error {
	query := `DELETE FROM sessions WHERE account_id = $1`
	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}
