package turnstile

import "errors"

var (
	ErrMissingSecret      = errors.New("turnstile: secret is not configured")
	ErrVerificationFailed = errors.New("turnstile: verification failed")
	ErrUnavailable        = errors.New("turnstile: verification service unavailable")
)
