package password

import "errors"

var (
	ErrEmptyPassword   = errors.New("password: empty password")
	ErrPasswordTooLong = errors.New("password: password exceeds 72 bytes")
	ErrInvalidDigest   = errors.New("password: invalid digest")
)
