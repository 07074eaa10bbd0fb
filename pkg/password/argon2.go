package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2ID = "argon2id"

// Argon2id hashes passwords with argon2id and encodes them in PHC format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2id struct {
	memory      uint32
	time        uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// Argon2Option configures Argon2id.
type Argon2Option func(*Argon2id)

// WithArgon2Memory sets the memory cost in KiB.
func WithArgon2Memory(kib uint32) Argon2Option {
	return func(a *Argon2id) {
		if kib >= 8*1024 {
			a.memory = kib
		}
	}
}

func WithArgon2Time(t uint32) Argon2Option {
	return func(a *Argon2id) {
		if t > 0 {
			a.time = t
		}
	}
}

func WithArgon2Parallelism(p uint8) Argon2Option {
	return func(a *Argon2id) {
		if p > 0 {
			a.parallelism = p
		}
	}
}

func NewArgon2id(opts ...Argon2Option) *Argon2id {
	a := &Argon2id{
		memory:      64 * 1024,
		time:        1,
		parallelism: 4,
		saltLength:  16,
		keyLength:   32,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Argon2id) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.time, a.memory, a.parallelism, a.keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.memory, a.time, a.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2id) Verify(plaintext, digest string) bool {
	if plaintext == "" {
		return false
	}
	p, err := parsePHC(digest)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(key, p.hash) == 1
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parsePHC(digest string) (*phc, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2ID {
		return nil, ErrInvalidDigest
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, ErrInvalidDigest
	}

	p := &phc{}
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, ErrInvalidDigest
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, ErrInvalidDigest
		}
		switch k {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, ErrInvalidDigest
			}
			p.parallelism = uint8(n)
		default:
			return nil, ErrInvalidDigest
		}
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, ErrInvalidDigest
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return nil, ErrInvalidDigest
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 {
		return nil, ErrInvalidDigest
	}
	return p, nil
}
