package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ztruyen/ztc-auth/pkg/email"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/password"
	"github.com/ztruyen/ztc-auth/pkg/retry"
	"github.com/ztruyen/ztc-auth/pkg/sanitizer"
)

// ResetFlow issues and redeems single-use password reset tokens.
//
//	NONE --Forgot--> PENDING(hash, expiry) --Reset--> NONE
//
// Only the SHA-256 of a token is stored. Issuing a token overwrites any
// previous one.
type ResetFlow struct {
	storage Storage
	hasher  password.Hasher
	sender  email.EmailSender
	cfg     ResetConfig
	policy  retry.Policy
	logger  *slog.Logger
	now     func() time.Time
}

func newResetFlow(storage Storage, hasher password.Hasher, sender email.EmailSender, cfg ResetConfig, policy retry.Policy, log *slog.Logger, now func() time.Time) *ResetFlow {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	return &ResetFlow{
		storage: storage,
		hasher:  hasher,
		sender:  sender,
		cfg:     cfg,
		policy:  policy,
		logger:  log,
		now:     now,
	}
}

// Forgot emails a reset link when addr belongs to an active password
// account. Unknown, deleted and social-only addresses get the same nil
// result with no side effect. Every outcome takes at least ResponseFloor.
func (f *ResetFlow) Forgot(ctx context.Context, addr string) error {
	if f.cfg.ResponseFloor > 0 {
		defer f.pad(ctx, time.Now())
	}
	return f.forgot(ctx, addr)
}

// pad sleeps until ResponseFloor has passed since start or ctx is done.
func (f *ResetFlow) pad(ctx context.Context, start time.Time) {
	t := time.NewTimer(f.cfg.ResponseFloor - time.Since(start))
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (f *ResetFlow) forgot(ctx context.Context, addr string) error {
	if f.sender == nil {
		return ErrServiceUnavailable
	}

	acc, err := f.storage.AccountByEmail(ctx, sanitizer.NormalizeEmail(addr))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			f.logger.DebugContext(ctx, "password reset requested for unknown email",
				slog.String("email", sanitizer.MaskEmail(addr)))
			return nil
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}
	if acc.IsDeleted || !acc.HasPassword() {
		return nil
	}

	token, hash, err := newResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	expiry := f.now().Add(f.cfg.TokenTTL)
	if err := f.storage.SetResetToken(ctx, acc.ID, hash, expiry); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	msg, err := email.PasswordReset(acc.Email, email.PasswordResetData{
		Name:          acc.Name,
		ResetLink:     f.link(token),
		ExpireMinutes: int(f.cfg.TokenTTL / time.Minute),
	})
	if err == nil {
		_, err = retry.Do(ctx, f.policy, func(ctx context.Context) (struct{}, error) {
			sendErr := f.sender.SendEmail(ctx, msg)
			if errors.Is(sendErr, email.ErrInvalidParams) {
				return struct{}{}, retry.Permanent(sendErr)
			}
			return struct{}{}, sendErr
		})
	}
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to send password reset email",
			logger.AccountID(acc.ID), logger.Error(err))
		// Leave no pending token the user never received.
		if clearErr := f.storage.ClearResetToken(context.WithoutCancel(ctx), acc.ID, hash); clearErr != nil {
			f.logger.ErrorContext(ctx, "failed to clear reset token", logger.AccountID(acc.ID), logger.Error(clearErr))
		}
		return ErrServiceUnavailable
	}
	return nil
}

// Reset sets a new password for the account holding token. The token,
// its expiry and the refresh reference are cleared in the same update, so
// the token cannot be used twice and existing sessions end.
func (f *ResetFlow) Reset(ctx context.Context, token, newPassword string) (*Account, error) {
	if len(token) != 64 {
		return nil, ErrResetTokenInvalid
	}
	if _, err := hex.DecodeString(token); err != nil {
		return nil, ErrResetTokenInvalid
	}

	digest, err := f.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acc, err := f.storage.ConsumeResetToken(ctx, hashResetToken(token), f.now(), digest)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}
	return acc, nil
}

func (f *ResetFlow) link(token string) string {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return f.cfg.URL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// newResetToken returns a 64 hex character token and its storage hash.
func newResetToken() (token, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
