package keyvault

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

func (r *PostgresRepository) UpsertServerKey(ctx context.Context, accountID int64, keyBlob, pubKey []byte) error {

	query :=
		`INSERT INTO account_game_server_key (account_id, key_blob, pub_key)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (account_id) DO UPDATE
		 SET key_blob = EXCLUDED.key_blob,
		     pub_key = EXCLUDED.pub_key,
		     updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, keyBlob, pubKey); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetServerKey(ctx context.Context, accountID int64) (*ServerKey, error) {

	query :=
		`SELECT account_id, key_blob, pub_key, updated_at
		 FROM account_game_server_key
		 WHERE account_id = $1
		 `

	key := &ServerKey{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&key.AccountID, &key.KeyBlob, &key.PubKey, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) ResolveGroupByPubKey(ctx context.Context, pubKey []byte) (int64, error) {

	query := `SELECT account_id FROM account_game_server_key WHERE pub_key = $1`

	var id int64
	err := r.db.QueryRowContext(ctx, query, pubKey).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) UpsertGroupKey(ctx context.Context, accountID, groupID int64, keyBlob []byte) error {

	query :=
		`INSERT INTO account_keys (account_id, group_id, key_blob)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (account_id, group_id) DO UPDATE
		 SET key_blob = EXCLUDED.key_blob,
		     updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, groupID, keyBlob); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetGroupKey(ctx context.Context, accountID, groupID int64) (*GroupKey, error) {

	query :=
		`SELECT account_id, group_id, key_blob, updated_at
		 FROM account_keys
		 WHERE account_id = $1 AND group_id = $2
		 `

	key := &GroupKey{}
	err := r.db.QueryRowContext(ctx, query, accountID, groupID).Scan(
		&key.AccountID, &key.GroupID, &key.KeyBlob, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) DeleteByAccount(ctx context.Context, accountID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM account_keys WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM account_game_server_key WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}
