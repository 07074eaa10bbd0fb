package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ztruyen/ztc-auth/handler"
	"github.com/ztruyen/ztc-auth/modules/account"
	"github.com/ztruyen/ztc-auth/pkg/clientip"
	"github.com/ztruyen/ztc-auth/pkg/cookie"
	"github.com/ztruyen/ztc-auth/pkg/email"
	"github.com/ztruyen/ztc-auth/pkg/httpserver"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/metrics"
	"github.com/ztruyen/ztc-auth/pkg/mongo"
	"github.com/ztruyen/ztc-auth/pkg/password"
	"github.com/ztruyen/ztc-auth/pkg/pg"
	"github.com/ztruyen/ztc-auth/pkg/redis"
	"github.com/ztruyen/ztc-auth/pkg/requestid"
	"github.com/ztruyen/ztc-auth/pkg/retry"
	"github.com/ztruyen/ztc-auth/pkg/turnstile"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

const readinessTimeout = 3 * time.Second

// app holds the wired process: the root handler plus everything that must
// be released on shutdown.
type app struct {
	handler http.Handler
	checks  map[string]httpserver.CheckFunc
	closers []func(context.Context) error
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// buildApp connects the backing services and assembles the router. On error
// everything opened so far is closed.
func buildApp(ctx context.Context, cfg App, log *slog.Logger) (_ *app, err error) {
	a := &app{checks: make(map[string]httpserver.CheckFunc)}
	defer func() {
		if err != nil {
			_ = a.close(context.WithoutCancel(ctx))
		}
	}()

	storage, err := a.storage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	states, err := a.stateStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokens(cfg.Auth.Tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to configure tokens: %w", err)
	}
	sender, err := email.New(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to configure email: %w", err)
	}
	if !cfg.Email.PostmarkEnabled() {
		log.Warn("postmark is not configured, emails are written to disk", slog.String("dir", cfg.Email.DevDir))
	}

	bot, err := botVerifier(cfg, log)
	if err != nil {
		return nil, err
	}

	jar, err := cookieJar(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New(metrics.WithNamespace("ztc"))
	adapters, providers := socialProviders(cfg)
	svc := auth.NewService(storage, passwordHasher(cfg), tokens, cfg.Auth,
		auth.WithLogger(log),
		auth.WithMailer(sender),
		auth.WithProviders(adapters...),
		auth.WithStateStore(states),
		auth.WithEventRecorder(m),
	)
	for _, p := range providers {
		log.Info("social login enabled", logger.Provider(string(p)))
	}

	mod := account.New(svc, jar,
		account.WithBotVerifier(bot),
		account.WithLogger(log),
		account.WithSocialProviders(providers...),
	)

	a.handler = a.router(cfg, log, m, mod)
	return a, nil
}

func (a *app) storage(ctx context.Context, cfg App, log *slog.Logger) (auth.Storage, error) {
	switch cfg.StorageDriver {
	case driverMongo:
		db, err := mongo.ConnectDatabase(ctx, cfg.mongo)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Client().Disconnect)
		a.checks["mongo"] = mongo.Healthcheck(db.Client())

		store := auth.NewMongoStorage(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case driverPostgres:
		pool, err := pg.Connect(ctx, cfg.pg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		a.checks["postgres"] = pg.Healthcheck(pool)

		version, err := pg.MigrationVersion(ctx, pool, cfg.pg, auth.Migrations, log)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema version: %w", err)
		}
		log.Info("postgres schema", slog.Int64("version", version))
		return auth.NewPostgresStorage(pool), nil

	default:
		log.Warn("using in-memory storage, accounts are lost on restart")
		return auth.NewMemoryStorage(), nil
	}
}

func (a *app) stateStore(ctx context.Context, cfg App) (auth.StateStore, error) {
	if cfg.StateStore != "redis" {
		return auth.NewMemoryStateStore(), nil
	}

	client, err := redis.Connect(ctx, cfg.redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	a.checks["redis"] = redis.Healthcheck(client)
	return auth.NewRedisStateStore(client), nil
}

func (a *app) router(cfg App, log *slog.Logger, m *metrics.Metrics, mod *account.Module) http.Handler {
	errorHandler := handler.NewErrorHandler(log)

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		clientip.Middleware(cfg.ClientIP),
		accessLog(log),
		middleware.Recoverer,
		m.Middleware,
	)

	r.Get("/health/live", httpserver.Liveness())
	r.Get("/health/ready", httpserver.Readiness(log, readinessTimeout, a.checks))
	if cfg.MetricsEndpoint {
		r.Handle("/metrics", m.Handler())
	}
	r.Mount("/auth", mod.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorHandler(handler.NewContext(w, r), handler.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorHandler(handler.NewContext(w, r), handler.ErrMethodNotAllowed)
	})
	return r
}

func passwordHasher(cfg App) password.Hasher {
	bc := password.NewBcrypt(password.WithCost(cfg.BcryptCost))
	argon := password.NewArgon2id()

	var primary password.Hasher = bc
	if cfg.PasswordAlgo == "argon2id" {
		primary = argon
	}
	return password.NewMulti(primary, bc, argon)
}

func botVerifier(cfg App, log *slog.Logger) (turnstile.Verifier, error) {
	if cfg.Turnstile.Secret == "" {
		log.Warn("turnstile secret is not set, bot checks are disabled")
		return turnstile.Disabled(), nil
	}

	policy := retry.Default()
	if cfg.Auth.CollaboratorTimeout > 0 {
		policy.Timeout = cfg.Auth.CollaboratorTimeout
	}
	v, err := turnstile.New(cfg.Turnstile, turnstile.WithRetryPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("failed to configure turnstile: %w", err)
	}
	return v, nil
}

func cookieJar(cfg App) (*cookie.Manager, error) {
	jar, err := cookie.New(cfg.Cookie, cookie.WithSecure(!cfg.env.IsDevelopment()))
	if err != nil {
		return nil, fmt.Errorf("failed to configure refresh cookie: %w", err)
	}
	return jar, nil
}

func socialProviders(cfg App) ([]auth.ProviderAdapter, []auth.Provider) {
	policy := retry.Default()
	if cfg.Auth.CollaboratorTimeout > 0 {
		policy.Timeout = cfg.Auth.CollaboratorTimeout
	}
	opts := []auth.AdapterOption{auth.WithRequireVerifiedEmail(), auth.WithRetryPolicy(policy)}

	var (
		adapters  []auth.ProviderAdapter
		providers []auth.Provider
	)
	if cfg.Google.Enabled() {
		adapters = append(adapters, auth.NewGoogleAdapter(cfg.Google, opts...))
		providers = append(providers, auth.ProviderGoogle)
	}
	if cfg.Facebook.Enabled() {
		adapters = append(adapters, auth.NewFacebookAdapter(cfg.Facebook, opts...))
		providers = append(providers, auth.ProviderFacebook)
	}
	return adapters, providers
}

// accessLog writes one line per request once it completes.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.LogAttrs(r.Context(), slog.LevelInfo, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("client_ip", clientip.FromContext(r.Context())),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
