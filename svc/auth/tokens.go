package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ztruyen/ztc-auth/pkg/jwt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errSameSecrets = errors.New("auth: access and refresh secrets must differ")

// Tokens mints and verifies the access/refresh pair.
type Tokens struct {
	access  *jwt.Service
	refresh *jwt.Service
}

// NewTokens builds both signers. Extra jwt options (clock, leeway) apply
// to both.
func NewTokens(cfg TokenConfig, opts ...jwt.Option) (*Tokens, error) {
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errSameSecrets
	}

	access, err := jwt.New([]byte(cfg.AccessSecret), tokenTypeAccess,
		append([]jwt.Option{jwt.WithIssuer(cfg.Issuer), jwt.WithTTL(cfg.AccessTTL)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token signer: %w", err)
	}
	refresh, err := jwt.New([]byte(cfg.RefreshSecret), tokenTypeRefresh,
		append([]jwt.Option{jwt.WithIssuer(cfg.Issuer), jwt.WithTTL(cfg.RefreshTTL)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token signer: %w", err)
	}

	return &Tokens{access: access, refresh: refresh}, nil
}

// RefreshTTL is also the refresh cookie's Max-Age.
func (t *Tokens) RefreshTTL() time.Duration { return t.refresh.TTL() }

// IssueAccess mints a stateless access token carrying id and role.
func (t *Tokens) IssueAccess(acc *Account) (string, time.Time, error) {
	return t.access.Issue(jwt.Claims{
		Role:             string(acc.Role),
		RegisteredClaims: gojwt.RegisteredClaims{Subject: acc.ID.String()},
	})
}

// IssueRefresh mints a refresh token with a fresh jti and returns the
// storage reference for it.
func (t *Tokens) IssueRefresh(accountID uuid.UUID) (token, ref string, exp time.Time, err error) {
	jti := uuid.NewString()
	token, exp, err = t.refresh.Issue(jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject: accountID.String(),
			ID:      jti,
		},
	})
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, refreshRef(jti), exp, nil
}

// VerifyAccess validates an access token and returns its principal.
func (t *Tokens) VerifyAccess(raw string) (Principal, error) {
	claims, err := t.access.Parse(raw)
	if err != nil {
		return Principal{}, errors.Join(ErrTokenInvalid, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrTokenInvalid
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Principal{}, ErrTokenInvalid
	}
	return Principal{AccountID: id, Role: role}, nil
}

// VerifyRefresh validates a refresh token and returns the account id and
// the storage reference it must match.
func (t *Tokens) VerifyRefresh(raw string) (uuid.UUID, string, error) {
	claims, err := t.refresh.Parse(raw)
	if err != nil {
		return uuid.Nil, "", errors.Join(ErrTokenInvalid, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return uuid.Nil, "", ErrTokenInvalid
	}
	return id, refreshRef(claims.ID), nil
}

func refreshRef(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
