// Package db wires the durable backing store: it opens the connection pool
// and hands out the repositories over an explicitly passed handle instead
// of a process-wide global.
package db

import (
	"context"
	"database/sql"

	"github.com/dkrasnov/accountd/internal/server/accounts"
	"github.com/dkrasnov/accountd/internal/server/keyvault"
	"github.com/dkrasnov/accountd/internal/server/sessions"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Close() error
	Accounts() accounts.Repository
	Sessions() sessions.Repository
	Keys() keyvault.Repository
}
