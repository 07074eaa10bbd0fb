package auth

import "errors"

// Terminal, user-visible failures. Each maps to a stable code via ErrorCode.
var (
	ErrInvalidCredentials   = errors.New("auth: invalid credentials")
	ErrDuplicateAccount     = errors.New("auth: account already exists")
	ErrTokenInvalid         = errors.New("auth: token is invalid or expired")
	ErrTokenReused          = errors.New("auth: refresh token reuse detected")
	ErrResetTokenInvalid    = errors.New("auth: reset token is invalid or expired")
	ErrBotCheckFailed       = errors.New("auth: bot verification failed")
	ErrForbidden            = errors.New("auth: forbidden")
	ErrServiceUnavailable   = errors.New("auth: service temporarily unavailable")
	ErrAccountLinkRequired  = errors.New("auth: email belongs to a password account")
	ErrOAuthStateInvalid    = errors.New("auth: oauth state is invalid or expired")
	ErrOAuthCodeInvalid     = errors.New("auth: oauth code is invalid")
	ErrOAuthEmailMissing    = errors.New("auth: provider did not return an email")
	ErrOAuthEmailUnverified = errors.New("auth: provider email is not verified")
	ErrUnknownProvider      = errors.New("auth: unknown provider")
)

// Storage level errors.
var (
	ErrAccountNotFound = errors.New("auth: account not found")
	ErrRefMismatch     = errors.New("auth: refresh reference mismatch")
	ErrStateNotFound   = errors.New("auth: state not found")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrDuplicateAccount, "duplicate_account"},
	{ErrTokenReused, "token_reused"},
	{ErrTokenInvalid, "token_invalid"},
	{ErrResetTokenInvalid, "reset_token_invalid_or_expired"},
	{ErrBotCheckFailed, "bot_check_failed"},
	{ErrForbidden, "forbidden"},
	{ErrServiceUnavailable, "service_unavailable"},
	{ErrAccountLinkRequired, "account_link_required"},
	{ErrOAuthStateInvalid, "oauth_state_invalid"},
	{ErrOAuthCodeInvalid, "oauth_code_invalid"},
	{ErrOAuthEmailMissing, "oauth_email_missing"},
	{ErrOAuthEmailUnverified, "oauth_email_unverified"},
	{ErrUnknownProvider, "unknown_provider"},
}

// ErrorCode returns the stable code for a domain error, or "" when err is
// not one of them.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}
