// Package password hashes and verifies account passwords.
//
// Two algorithms are available: bcrypt (the default) and argon2id. Both
// satisfy Hasher. Verify never returns an error: a malformed or foreign
// digest simply does not match.
package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is a salted, slow one-way password function.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// Bcrypt hashes passwords with bcrypt.
type Bcrypt struct {
	cost int
}

// BcryptOption configures Bcrypt.
type BcryptOption func(*Bcrypt)

// WithCost sets the bcrypt cost. Values outside bcrypt's range are ignored.
func WithCost(cost int) BcryptOption {
	return func(b *Bcrypt) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			b.cost = cost
		}
	}
}

func NewBcrypt(opts ...BcryptOption) *Bcrypt {
	b := &Bcrypt{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", errors.Join(ErrInvalidDigest, err)
	}
	return string(digest), nil
}

// Verify compares in constant time. bcrypt rejects malformed digests
// before comparing, which is reported as a mismatch.
func (b *Bcrypt) Verify(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// Multi verifies digests produced by any of the known algorithms and hashes
// new passwords with the primary one. It lets the service switch algorithms
// without invalidating stored digests.
type Multi struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon   *Argon2id
}

func NewMulti(primary Hasher, bc *Bcrypt, argon *Argon2id) *Multi {
	return &Multi{primary: primary, bcrypt: bc, argon: argon}
}

func (m *Multi) Hash(plaintext string) (string, error) {
	return m.primary.Hash(plaintext)
}

func (m *Multi) Verify(plaintext, digest string) bool {
	switch {
	case strings.HasPrefix(digest, "$argon2id$") && m.argon != nil:
		return m.argon.Verify(plaintext, digest)
	case strings.HasPrefix(digest, "$2") && m.bcrypt != nil:
		return m.bcrypt.Verify(plaintext, digest)
	default:
		return false
	}
}
