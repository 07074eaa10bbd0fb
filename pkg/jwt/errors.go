package jwt

import "errors"

var (
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrWrongTokenType    = errors.New("jwt: unexpected token type")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrWeakSigningKey    = errors.New("jwt: signing key must be at least 32 bytes")
	ErrMissingToken      = errors.New("jwt: missing token")
)
