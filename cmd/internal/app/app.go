// Package app wires the agora server runtime: config, logging, metrics,
// stores, HTTP routes, and the live notification stream.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"agora/cmd/identity"
	authapi "agora/cmd/internal/auth/api"
	"agora/cmd/internal/board"
	boardapi "agora/cmd/internal/board/api"
	"agora/cmd/internal/notify"
	notifyapi "agora/cmd/internal/notify/api"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the agora server runtime: it owns the HTTP server wiring and the
// notification dispatch dependencies.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metricsReg *prometheus.Registry

	auth          *authapi.Handler
	boardAPI      *boardapi.Handler
	notifications *notifyapi.Handler
	stream        *notify.StreamGateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	st, dbPool, dbEnabled, users, boardStore, ledger, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	reg := NewMetricsRegistry()

	notifyMetrics := notify.NewMetrics(reg)
	registry := notify.NewRegistry(log, notifyMetrics)
	dispatcher := notify.NewDispatcher(log, ledger, registry, notifyMetrics)

	boardSvc := board.NewService(log, boardStore, users, dispatcher)

	authCfg := authapi.LoadConfig()
	if authCfg.TokenSecret == "" {
		// Dev fallback: sessions will not survive a restart.
		authCfg.TokenSecret = newRandomSecret()
		log.Warn("auth.token_secret.generated", "hint", "set AGORA_AUTH_TOKEN_SECRET for stable sessions")
	}
	tokens, err := identity.NewTokenManager(authCfg.TokenSecret, authCfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, authCfg, users, tokens)
	if err != nil {
		return nil, err
	}

	if err := bootstrapAdmin(context.Background(), log, cfg, users); err != nil {
		return nil, err
	}

	return &App{
		cfg:           cfg,
		log:           log,
		store:         st,
		dbPool:        dbPool,
		dbEnabled:     dbEnabled,
		metricsReg:    reg,
		auth:          authHandler,
		boardAPI:      boardapi.NewHandler(log, boardSvc),
		notifications: notifyapi.NewHandler(log, ledger),
		stream:        notify.NewStreamGateway(log, registry, authHandler.AuthenticateRequest),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.metricsReg,
		a.auth, a.boardAPI, a.notifications, a.stream)

	httpMetrics := NewHTTPMetrics(a.metricsReg)
	handler := a.auth.Authenticate(mux)
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log, httpMetrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	// Close store resources (pool etc).
	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStores decides between Postgres-backed persistence and the in-memory
// dev stores. All three stores share one pool; the app owns its lifecycle
// and the store Close methods are no-ops.
func newStores(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, identity.Store, board.Store, notify.Ledger, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false,
			identity.NewInMemoryStore(), board.NewInMemoryStore(), notify.NewInMemoryLedger(), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, nil, nil, err
	}

	log.Info("db.enabled.postgres_store")

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, nil, nil, err
	}

	return dbStore{pool: pool}, pool, true,
		users, board.NewPostgresStore(pool), notify.NewPostgresLedger(pool), nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// bootstrapAdmin creates the first admin account when the user table is
// empty. Without it a fresh deployment has no way to mint staff.
func bootstrapAdmin(ctx context.Context, log Logger, cfg Config, users identity.Store) error {
	n, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password := cfg.AdminPassword
	generated := false
	if password == "" {
		password = newRandomSecret()
		generated = true
	}

	hash, err := identity.HashPassword(password, identity.DefaultArgon2idParams())
	if err != nil {
		return err
	}

	u, err := users.CreateUser(ctx, identity.NewUser{
		Username:     cfg.AdminUsername,
		Role:         identity.RoleAdmin,
		PasswordHash: hash,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if generated {
		// Logged once on first boot; rotate via /users/me afterwards.
		log.Warn("bootstrap.admin.created", "username", u.Username, "password", password)
	} else {
		log.Info("bootstrap.admin.created", "username", u.Username)
	}
	return nil
}

func newRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the host is broken; an empty secret is
		// rejected downstream.
		return ""
	}
	return hex.EncodeToString(b)
}
