package account

import (
	"errors"
	"net/http"

	"github.com/ztruyen/ztc-auth/handler"
	"github.com/ztruyen/ztc-auth/pkg/turnstile"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

var statusByError = []struct {
	err     error
	status  int
	message string
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{auth.ErrDuplicateAccount, http.StatusConflict, "An account with this email already exists"},
	{auth.ErrTokenReused, http.StatusUnauthorized, "Session has been revoked, please log in again"},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, "Token is invalid or expired"},
	{auth.ErrResetTokenInvalid, http.StatusBadRequest, "Reset link is invalid or has expired"},
	{auth.ErrBotCheckFailed, http.StatusForbidden, "Bot verification failed"},
	{auth.ErrForbidden, http.StatusForbidden, "You do not have access to this resource"},
	{auth.ErrServiceUnavailable, http.StatusServiceUnavailable, "Service is temporarily unavailable, try again later"},
	{auth.ErrAccountLinkRequired, http.StatusConflict, "This email is registered with a password, log in with it instead"},
	{auth.ErrOAuthStateInvalid, http.StatusBadRequest, "Login request has expired, start again"},
	{auth.ErrOAuthCodeInvalid, http.StatusBadRequest, "Provider rejected the authorization code"},
	{auth.ErrOAuthEmailMissing, http.StatusBadRequest, "Provider did not share an email address"},
	{auth.ErrOAuthEmailUnverified, http.StatusBadRequest, "Provider email address is not verified"},
	{auth.ErrUnknownProvider, http.StatusNotFound, "Unknown login provider"},
}

// MapError translates auth and bot check errors into HTTP errors. Other
// errors are returned unchanged.
func MapError(err error) error {
	switch {
	case errors.Is(err, turnstile.ErrVerificationFailed):
		err = auth.ErrBotCheckFailed
	case errors.Is(err, turnstile.ErrUnavailable):
		err = auth.ErrServiceUnavailable
	}

	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return handler.NewHTTPError(e.status, auth.ErrorCode(e.err), e.message)
		}
	}
	return err
}
