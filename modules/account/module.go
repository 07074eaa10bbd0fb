package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ztruyen/ztc-auth/handler"
	"github.com/ztruyen/ztc-auth/pkg/cookie"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/turnstile"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

// AuthService is the part of auth.Service the HTTP layer drives.
type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Register(ctx context.Context, in auth.RegisterInput) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Session, error)
	Logout(ctx context.Context, accountID uuid.UUID) error
	Account(ctx context.Context, accountID uuid.UUID) (auth.View, error)
	SocialAuthURL(ctx context.Context, provider auth.Provider, redirectPath string) (string, error)
	SocialLogin(ctx context.Context, provider auth.Provider, state, code string) (auth.Session, string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyAccess(token string) (auth.Principal, error)
}

// Module serves the /auth endpoints.
type Module struct {
	svc          AuthService
	jar          *cookie.Manager
	bot          turnstile.Verifier
	logger       *slog.Logger
	errorHandler handler.ErrorHandler[handler.Context]
	providers    []auth.Provider
	now          func() time.Time
}

// Option configures Module.
type Option func(*Module)

// WithBotVerifier sets the Turnstile verifier used by register and
// forgot-password. Without it every bot check passes.
func WithBotVerifier(v turnstile.Verifier) Option {
	return func(m *Module) {
		if v != nil {
			m.bot = v
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSocialProviders mounts the redirect and callback routes for the
// given providers.
func WithSocialProviders(providers ...auth.Provider) Option {
	return func(m *Module) {
		m.providers = append(m.providers, providers...)
	}
}

// WithClock overrides the time source used for cookie lifetimes and
// birthday checks.
func WithClock(now func() time.Time) Option {
	return func(m *Module) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates the module. jar issues the refresh token cookie.
func New(svc AuthService, jar *cookie.Manager, opts ...Option) *Module {
	m := &Module{
		svc:    svc,
		jar:    jar,
		bot:    turnstile.Disabled(),
		logger: logger.Noop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("account"))
	m.errorHandler = handler.NewErrorHandler(m.logger, handler.WithErrorMapper(MapError))
	return m
}
