// Package jwt signs and verifies HS256 tokens.
//
// A Service handles exactly one kind of token, identified by the "typ" claim.
// Separate services with separate secrets are used for access and refresh
// tokens, so one kind can never be accepted in place of the other.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the claim set shared by every token kind.
// Role is only set on access tokens, ID only on refresh tokens.
type Claims struct {
	Type string `json:"typ"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and parses tokens of one type.
type Service struct {
	secret []byte
	typ    string
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// Option configures Service.
type Option func(*Service)

func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLeeway tolerates clock skew when validating exp and iat.
func WithLeeway(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.leeway = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Service for tokens of type typ signed with secret.
func New(secret []byte, typ string, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSigningKey
	}
	if len(secret) < 32 {
		return nil, ErrWeakSigningKey
	}

	s := &Service{
		secret: secret,
		typ:    typ,
		ttl:    15 * time.Minute,
		leeway: 5 * time.Second,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs c after filling in type, issuer, issued-at and expiry.
// It returns the token and its expiry time.
func (s *Service) Issue(c Claims) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	c.Type = s.typ
	c.Issuer = s.issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(exp)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, exp, nil
}

// Parse verifies raw and returns its claims. Any failure is reported as
// ErrInvalidToken, with ErrExpiredToken or ErrWrongTokenType joined in when
// that is the cause.
func (s *Service) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(parserOpts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(ErrInvalidToken, ErrExpiredToken)
		}
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != s.typ {
		return nil, errors.Join(ErrInvalidToken, ErrWrongTokenType)
	}
	if claims.Subject == "" {
		return nil, errors.Join(ErrInvalidToken, jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}
