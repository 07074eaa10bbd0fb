package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ztruyen/ztc-auth/pkg/email"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/password"
	"github.com/ztruyen/ztc-auth/pkg/retry"
	"github.com/ztruyen/ztc-auth/pkg/sanitizer"
)

// Service implements login, registration, refresh, logout, social login and
// password reset on top of Storage.
type Service struct {
	storage   Storage
	hasher    password.Hasher
	tokens    *Tokens
	rotator   *RefreshRotator
	social    *SocialResolver
	reset     *ResetFlow
	providers map[Provider]ProviderAdapter
	states    StateStore
	sender    email.EmailSender
	events    EventRecorder
	logger    *slog.Logger
	policy    retry.Policy
	cfg       Config
	now       func() time.Time

	// dummyHash is verified when an email is unknown so that response
	// time does not reveal which accounts exist.
	dummyHash string
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMailer sets the sender used for password reset emails.
func WithMailer(sender email.EmailSender) ServiceOption {
	return func(s *Service) { s.sender = sender }
}

// WithProviders registers OAuth provider adapters.
func WithProviders(adapters ...ProviderAdapter) ServiceOption {
	return func(s *Service) {
		for _, a := range adapters {
			if a != nil {
				s.providers[a.ProviderID()] = a
			}
		}
	}
}

// WithStateStore sets where OAuth states are kept between redirect and
// callback. Defaults to an in-memory store.
func WithStateStore(store StateStore) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.states = store
		}
	}
}

// WithEventRecorder reports outcomes, typically to metrics.
func WithEventRecorder(r EventRecorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.events = r
		}
	}
}

// WithClock overrides the time source used for reset token expiry.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the session lifecycle together.
func NewService(storage Storage, hasher password.Hasher, tokens *Tokens, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		storage:   storage,
		hasher:    hasher,
		tokens:    tokens,
		rotator:   NewRefreshRotator(storage, tokens),
		social:    NewSocialResolver(storage),
		providers: make(map[Provider]ProviderAdapter),
		states:    NewMemoryStateStore(),
		events:    noopRecorder{},
		logger:    logger.Noop(),
		policy:    retry.Default(),
		cfg:       cfg,
		now:       time.Now,
	}
	if cfg.CollaboratorTimeout > 0 {
		s.policy.Timeout = cfg.CollaboratorTimeout
	}
	if cfg.OAuthStateTTL <= 0 {
		s.cfg.OAuthStateTTL = 10 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}

	s.reset = newResetFlow(storage, hasher, s.sender, cfg.Reset, s.policy, s.logger, s.now)
	if h, err := hasher.Hash("ztc-timing-equalizer"); err == nil {
		s.dummyHash = h
	}
	return s
}

// RefreshTTL is the lifetime of refresh tokens and their cookie.
func (s *Service) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

// VerifyAccess validates a bearer access token.
func (s *Service) VerifyAccess(token string) (Principal, error) {
	return s.tokens.VerifyAccess(token)
}

// Login checks local credentials and starts a new session, replacing any
// previous one. Every failure is ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, addr, pw string) (sess Session, err error) {
	defer func() { s.record(ctx, EventLogin, err) }()

	acc, err := s.storage.AccountByEmail(ctx, sanitizer.NormalizeEmail(addr))
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return Session{}, fmt.Errorf("failed to look up account: %w", err)
		}
		s.hasher.Verify(pw, s.dummyHash)
		return Session{}, ErrInvalidCredentials
	}
	if acc.IsDeleted || !acc.HasPassword() {
		s.hasher.Verify(pw, s.dummyHash)
		return Session{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(pw, acc.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	sess, err = s.rotator.Start(ctx, acc)
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "account logged in", logger.AccountID(acc.ID), logger.Provider(string(ProviderLocal)))
	return sess, nil
}

// Register creates a local account and starts its first session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (sess Session, err error) {
	defer func() { s.record(ctx, EventRegister, err) }()

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	acc := &Account{
		Email:        sanitizer.NormalizeEmail(in.Email),
		PasswordHash: digest,
		Provider:     ProviderLocal,
		Role:         RoleUser,
		Name:         sanitizer.CollapseSpace(in.Name),
		Birthday:     in.Birthday,
		Age:          in.Age,
		Gender:       in.Gender,
	}
	if err := s.storage.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return Session{}, ErrDuplicateAccount
		}
		return Session{}, fmt.Errorf("failed to create account: %w", err)
	}
	s.logger.InfoContext(ctx, "account registered", logger.AccountID(acc.ID))

	return s.rotator.Start(ctx, acc)
}

// Refresh rotates the presented refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (sess Session, err error) {
	defer func() { s.record(ctx, EventRefresh, err) }()

	sess, err = s.rotator.Rotate(ctx, refreshToken)
	if errors.Is(err, ErrTokenReused) {
		s.logger.WarnContext(ctx, "refresh token reuse detected, session revoked", logger.Event("token_reuse"))
	}
	return sess, err
}

// Logout ends the account's session.
func (s *Service) Logout(ctx context.Context, accountID uuid.UUID) (err error) {
	defer func() { s.record(ctx, EventLogout, err) }()
	return s.rotator.End(ctx, accountID)
}

// Account returns the current projection of an active account.
func (s *Service) Account(ctx context.Context, accountID uuid.UUID) (View, error) {
	acc, err := s.storage.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return View{}, ErrInvalidCredentials
		}
		return View{}, fmt.Errorf("failed to load account: %w", err)
	}
	if acc.IsDeleted {
		return View{}, ErrInvalidCredentials
	}
	return acc.View(), nil
}

// SocialAuthURL stores a fresh state and returns the provider consent URL.
// redirectPath is kept only when it is a local absolute path.
func (s *Service) SocialAuthURL(ctx context.Context, provider Provider, redirectPath string) (string, error) {
	adapter, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}

	state, err := newState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	data := OAuthState{Provider: provider, RedirectPath: safeRedirectPath(redirectPath)}
	if err := s.states.Save(ctx, state, data, s.cfg.OAuthStateTTL); err != nil {
		s.logger.ErrorContext(ctx, "failed to save oauth state", logger.Provider(string(provider)), logger.Error(err))
		return "", ErrServiceUnavailable
	}
	return adapter.AuthURL(state), nil
}

// SocialLogin completes a provider callback. It returns the new session and
// the frontend URL the browser should be sent to. The URL never carries
// tokens; the frontend obtains an access token through refresh.
func (s *Service) SocialLogin(ctx context.Context, provider Provider, state, code string) (sess Session, redirect string, err error) {
	defer func() { s.record(ctx, EventSocialLogin, err) }()

	adapter, ok := s.providers[provider]
	if !ok {
		return Session{}, "", ErrUnknownProvider
	}

	data, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return Session{}, "", ErrOAuthStateInvalid
		}
		s.logger.ErrorContext(ctx, "failed to consume oauth state", logger.Error(err))
		return Session{}, "", ErrServiceUnavailable
	}
	if data.Provider != provider {
		return Session{}, "", ErrOAuthStateInvalid
	}

	profile, err := adapter.ResolveProfile(ctx, code)
	if err != nil {
		if ErrorCode(err) != "" {
			return Session{}, "", err
		}
		s.logger.ErrorContext(ctx, "failed to resolve provider profile",
			logger.Provider(string(provider)), logger.Error(err))
		return Session{}, "", ErrServiceUnavailable
	}

	acc, created, err := s.social.Resolve(ctx, provider, profile)
	if err != nil {
		if errors.Is(err, ErrAccountLinkRequired) {
			s.logger.WarnContext(ctx, "social login blocked for password account",
				logger.Provider(string(provider)), slog.String("email", sanitizer.MaskEmail(profile.Email)))
		}
		return Session{}, "", err
	}

	sess, err = s.rotator.Start(ctx, acc)
	if err != nil {
		return Session{}, "", err
	}
	s.logger.InfoContext(ctx, "account logged in",
		logger.AccountID(acc.ID), logger.Provider(string(provider)), slog.Bool("created", created))
	return sess, s.frontendRedirect(data.RedirectPath), nil
}

// ForgotPassword starts a password reset. The result does not depend on
// whether the email is registered.
func (s *Service) ForgotPassword(ctx context.Context, addr string) (err error) {
	defer func() { s.record(ctx, EventForgotPassword, err) }()
	return s.reset.Forgot(ctx, addr)
}

// ResetPassword completes a password reset and ends any active session.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.record(ctx, EventResetPassword, err) }()

	acc, err := s.reset.Reset(ctx, token, newPassword)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset completed", logger.AccountID(acc.ID))
	return nil
}

func (s *Service) frontendRedirect(path string) string {
	u, err := url.Parse(strings.TrimRight(s.cfg.FrontendURL, "/") + s.cfg.FrontendCallbackPath)
	if err != nil {
		return s.cfg.FrontendURL
	}
	if path != "" {
		q := u.Query()
		q.Set("redirect", path)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (s *Service) record(ctx context.Context, event string, err error) {
	s.events.Record(ctx, event, outcome(err))
	if err != nil && ErrorCode(err) == "" {
		s.logger.ErrorContext(ctx, "auth operation failed", logger.Event(event), logger.Error(err))
	}
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// safeRedirectPath accepts "/path?query" and rejects anything that could
// leave the frontend origin.
func safeRedirectPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return p
}
