// Package auth implements the account session and credential lifecycle.
//
// The Service composes four pieces:
//
//   - Tokens mints HS256 access and refresh tokens with distinct secrets.
//   - RefreshRotator binds exactly one live refresh token to each account.
//     Presenting any other cryptographically valid refresh token is treated
//     as reuse: the stored reference is cleared and the caller must log in
//     again.
//   - SocialResolver maps a provider profile (google, facebook) to an
//     existing or new account.
//   - ResetFlow issues single-use, expiring password reset tokens.
//
// All persistent state lives in the Account record behind Storage. Every
// mutation is a single-record update; rotation and reset completion are
// conditional updates so that concurrent callers cannot both succeed.
//
// Basic wiring:
//
//	tokens, _ := auth.NewTokens(cfg.Tokens)
//	svc := auth.NewService(storage, password.NewBcrypt(), tokens, cfg,
//		auth.WithMailer(mailer),
//		auth.WithProviders(auth.NewGoogleAdapter(cfg.Google)),
//		auth.WithStateStore(auth.NewRedisStateStore(redisClient)),
//		auth.WithLogger(log),
//	)
//
//	session, err := svc.Login(ctx, email, pw)
package auth
