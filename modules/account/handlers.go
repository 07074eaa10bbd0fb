package account

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ztruyen/ztc-auth/handler"
	"github.com/ztruyen/ztc-auth/pkg/clientip"
	"github.com/ztruyen/ztc-auth/pkg/jwt"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

const (
	forgotPasswordMessage = "If the email is registered, a password reset link has been sent"
	resetPasswordMessage  = "Password has been reset, please log in"
	logoutMessage         = "Logged out"
)

type sessionResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        auth.View `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (m *Module) login(ctx handler.Context, req loginRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Fail(err)
	}

	sess, err := m.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return handler.Fail(err)
	}
	return m.session(sess)
}

func (m *Module) register(ctx handler.Context, req registerRequest) handler.Response {
	if err := req.validate(m.now()); err != nil {
		return handler.Fail(err)
	}
	if err := m.verifyHuman(ctx, req.BotToken); err != nil {
		return handler.Fail(err)
	}

	sess, err := m.svc.Register(ctx, req.input())
	if err != nil {
		return handler.Fail(err)
	}
	return m.session(sess, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) refresh(ctx handler.Context, _ struct{}) handler.Response {
	raw, err := jwt.CookieTokenExtractor(m.jar.Name())(ctx.Request())
	if err != nil {
		return handler.Fail(errors.Join(auth.ErrTokenInvalid, err))
	}

	sess, err := m.svc.Refresh(ctx, raw)
	if err != nil {
		return handler.Fail(err)
	}
	return m.session(sess)
}

func (m *Module) logout(ctx handler.Context, _ struct{}) handler.Response {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return handler.Fail(auth.ErrTokenInvalid)
	}

	if err := m.svc.Logout(ctx, principal.AccountID); err != nil {
		return handler.Fail(err)
	}
	m.logger.InfoContext(ctx, "account logged out", logger.AccountID(principal.AccountID))
	return handler.WithCookies(handler.JSON(messageResponse{Message: logoutMessage}), m.jar.Expired())
}

func (m *Module) account(ctx handler.Context, _ struct{}) handler.Response {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return handler.Fail(auth.ErrTokenInvalid)
	}

	view, err := m.svc.Account(ctx, principal.AccountID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(view)
}

func (m *Module) forgotPassword(ctx handler.Context, req forgotPasswordRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Fail(err)
	}
	if err := m.verifyHuman(ctx, req.BotToken); err != nil {
		return handler.Fail(err)
	}

	if err := m.svc.ForgotPassword(ctx, req.Email); err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(messageResponse{Message: forgotPasswordMessage}, handler.WithJSONStatus(http.StatusAccepted))
}

func (m *Module) resetPassword(ctx handler.Context, req resetPasswordRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Fail(err)
	}

	if err := m.svc.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(messageResponse{Message: resetPasswordMessage})
}

func (m *Module) socialStart(provider auth.Provider) func(handler.Context, socialStartRequest) handler.Response {
	return func(ctx handler.Context, req socialStartRequest) handler.Response {
		target, err := m.svc.SocialAuthURL(ctx, provider, req.Redirect)
		if err != nil {
			return handler.Fail(err)
		}
		return handler.Redirect(target)
	}
}

func (m *Module) socialCallback(provider auth.Provider) func(handler.Context, socialCallbackRequest) handler.Response {
	return func(ctx handler.Context, req socialCallbackRequest) handler.Response {
		if req.Error != "" {
			return handler.Fail(fmt.Errorf("%w: provider returned %q", auth.ErrOAuthCodeInvalid, req.Error))
		}

		sess, target, err := m.svc.SocialLogin(ctx, provider, req.State, req.Code)
		if err != nil {
			return handler.Fail(err)
		}
		return handler.WithCookies(handler.Redirect(target), m.refreshCookie(sess))
	}
}

// verifyHuman runs the bot check against the caller's address.
func (m *Module) verifyHuman(ctx handler.Context, token string) error {
	ip := clientip.FromContext(ctx)
	if ip == "" {
		ip = clientip.GetIP(ctx.Request())
	}
	if err := m.bot.Verify(ctx, token, ip); err != nil {
		return fmt.Errorf("bot check: %w", err)
	}
	return nil
}

func (m *Module) session(sess auth.Session, opts ...handler.JSONOption) handler.Response {
	body := sessionResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.AccessExpiresAt,
		User:        sess.Account,
	}
	return handler.WithCookies(handler.JSON(body, opts...), m.refreshCookie(sess))
}

func (m *Module) refreshCookie(sess auth.Session) *http.Cookie {
	return m.jar.Cookie(sess.RefreshToken, sess.RefreshExpiresAt.Sub(m.now()))
}
