// Package server initializes and runs the account server: it wires the
// durable store, the token ledger, mail delivery and the HTTP endpoint,
// and handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dkrasnov/accountd/internal/logging"
	"github.com/dkrasnov/accountd/internal/server/accounts"
	"github.com/dkrasnov/accountd/internal/server/auth"
	"github.com/dkrasnov/accountd/internal/server/config"
	"github.com/dkrasnov/accountd/internal/server/email"
	"github.com/dkrasnov/accountd/internal/server/httpapi"
	"github.com/dkrasnov/accountd/internal/server/keyvault"
	"github.com/dkrasnov/accountd/internal/server/sessions"
	"github.com/dkrasnov/accountd/internal/server/shared/db"
	"github.com/dkrasnov/accountd/internal/server/tokens"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    db.RepositoryManager
	ledger   tokens.Store
	memStore *tokens.MemoryStore
	server   *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	repos, err := db.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var ledger tokens.Store
	var memStore *tokens.MemoryStore
	if cfg.RedisAddr != "" {
		ledger = tokens.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		memStore = tokens.NewMemoryStore()
		ledger = memStore
	}

	var mailer email.Mailer
	if cfg.SMTPRelay != "" {
		mailer = email.NewSMTPMailer(cfg.SMTPRelay, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		logger.Warn(ctx, "no SMTP relay configured, mail delivery disabled")
		mailer = &email.NullMailer{}
	}

	signingKey, err := auth.LoadOrCreateKey(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("signing key error: %w", err)
	}
	signer := auth.NewSigner(signingKey, cfg.CertValidityDuration)

	accountService := accounts.NewService(repos.Accounts(), ledger, mailer,
		repos.Sessions(), repos.Keys(), logger, cfg.TokenValidityDuration, cfg.BaseURL)
	sessionService := sessions.NewService(repos.Sessions(), repos.Accounts(), ledger,
		mailer, signer, logger, cfg.TokenValidityDuration, cfg.BaseURL)
	keyService := keyvault.NewService(repos.Keys(), repos.Accounts(), sessionService, logger)

	api := httpapi.NewServer(accountService, sessionService, keyService, logger)

	srv := &http.Server{
		Addr:    cfg.EndpointAddr,
		Handler: api.Router(),
	}

	return &App{
		config:   cfg,
		logger:   logger,
		repos:    repos,
		ledger:   ledger,
		memStore: memStore,
		server:   srv,
	}, nil
}

// Run serves until the context is cancelled or a component fails, then
// drains in-flight requests and closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// redis entries expire natively; only the in-process ledger needs a sweep
	if app.memStore != nil {
		g.Go(func() error {
			app.memStore.RunSweeper(ctx, app.config.TokenValidityDuration)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return app.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if cerr := app.repos.Close(); cerr != nil {
		app.logger.Error(ctx, "db close error", "error", cerr.Error())
	}

	app.logger.Info(ctx, "app stopped")
	return err
}
