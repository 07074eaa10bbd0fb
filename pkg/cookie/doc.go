// Package cookie manages the HttpOnly cookie that carries the refresh token.
//
// The cookie is scoped to the auth routes by path, is never readable from
// scripts and is marked Secure unless disabled for local development:
//
//	jar, err := cookie.New(cookie.DefaultConfig(), cookie.WithSecure(!env.IsDevelopment()))
//	jar.Set(w, session.RefreshToken, refreshTTL)
//	token, err := jar.Get(r)
//	jar.Clear(w)
package cookie
