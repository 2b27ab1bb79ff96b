package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/dbx"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *Account) (*Account, error) {

	query :=
		`INSERT INTO accounts (email, password_hash, salt, encrypted_main_secret)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.Email, account.PasswordHash, account.Salt, account.EncryptedMainSecret).
		Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) CreateSteamIfAbsent(ctx context.Context, steamID string) (int64, error) {

	var id int64

	// insert and resolve run in one transaction so a concurrent deletion
	// cannot slip between the two statements
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`INSERT INTO accounts (steam_id, verified)
			 VALUES ($1, TRUE)
			 ON CONFLICT (steam_id) DO NOTHING
			 `

		if _, err := tx.ExecContext(ctx, query, steamID); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx,
			`SELECT id FROM accounts WHERE steam_id = $1`, steamID).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	return r.get(ctx,
		`SELECT id, email, steam_id, password_hash, salt, encrypted_main_secret,
		        verified, verified_game_server, created_at
		 FROM accounts
		 WHERE id = $1
		 `, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.get(ctx,
		`SELECT id, email, steam_id, password_hash, salt, encrypted_main_secret,
		        verified, verified_game_server, created_at
		 FROM accounts
		 WHERE email = $1
		 `, email)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*Account, error) {
	account := &Account{}
	var email, steamID sql.NullString

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &email, &steamID,
		&account.PasswordHash, &account.Salt, &account.EncryptedMainSecret,
		&account.Verified, &account.VerifiedGameServer, &account.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	account.Email = email.String
	account.SteamID = steamID.String

	return account, nil
}

func (r *PostgresRepository) SetVerified(ctx context.Context, id int64) error {
	return r.setFlag(ctx, `UPDATE accounts SET verified = TRUE WHERE id = $1`, id)
}

func (r *PostgresRepository) SetGameServerVerified(ctx context.Context, id int64) error {
	return r.setFlag(ctx, `UPDATE accounts SET verified_game_server = TRUE WHERE id = $1`, id)
}

func (r *PostgresRepository) setFlag(ctx context.Context, query string, id int64) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ReplaceCredentials(ctx context.Context, id int64, passwordHash, salt, encryptedMainSecret []byte) error {

	query :=
		`UPDATE accounts
		 SET password_hash = $2, salt = $3, encrypted_main_secret = $4
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, passwordHash, salt, encryptedMainSecret)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}
