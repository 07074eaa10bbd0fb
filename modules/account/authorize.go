package account

import (
	"errors"
	"net/http"

	"github.com/ztruyen/ztc-auth/handler"
	"github.com/ztruyen/ztc-auth/pkg/jwt"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

// Route describes who may call an endpoint. The zero value is public.
type Route struct {
	RequiresAuth bool
	// AllowedRoles restricts an authenticated route. Empty allows any role.
	AllowedRoles []auth.Role
}

// Public is a route anyone can call.
var Public = Route{}

// Authenticated returns a route that needs a valid access token and, when
// roles are given, one of those roles.
func Authenticated(roles ...auth.Role) Route {
	return Route{RequiresAuth: true, AllowedRoles: roles}
}

// AccessVerifier validates bearer access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (auth.Principal, error)
}

// Authorize enforces route on every request. Verified callers are stored
// with auth.WithPrincipal. Failures render through errorHandler.
func Authorize(route Route, verifier AccessVerifier, errorHandler handler.ErrorHandler[handler.Context]) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = handler.NewErrorHandler(nil, handler.WithErrorMapper(MapError))
	}

	return func(next http.Handler) http.Handler {
		if !route.RequiresAuth {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := jwt.BearerTokenExtractor(r)
			if err != nil {
				errorHandler(handler.NewContext(w, r), errors.Join(auth.ErrTokenInvalid, err))
				return
			}

			principal, err := verifier.VerifyAccess(raw)
			if err != nil {
				errorHandler(handler.NewContext(w, r), err)
				return
			}

			if len(route.AllowedRoles) > 0 && !principal.Role.In(route.AllowedRoles...) {
				errorHandler(handler.NewContext(w, r), auth.ErrForbidden)
				return
			}

			ctx := jwt.SetToken(r.Context(), raw)
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
		})
	}
}
