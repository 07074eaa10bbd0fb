package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RefreshRotator keeps exactly one live refresh token per account.
//
//	NO_SESSION --Start--> ACTIVE(T) --Rotate(T)--> ACTIVE(T')
//	ACTIVE(T)  --Rotate(X != T)--> NO_SESSION   (reuse)
//	ACTIVE(T)  --End--> NO_SESSION
type RefreshRotator struct {
	storage Storage
	tokens  *Tokens
}

func NewRefreshRotator(storage Storage, tokens *Tokens) *RefreshRotator {
	return &RefreshRotator{storage: storage, tokens: tokens}
}

// Start mints a new pair for acc and replaces any previous session.
func (r *RefreshRotator) Start(ctx context.Context, acc *Account) (Session, error) {
	refresh, ref, refreshExp, err := r.tokens.IssueRefresh(acc.ID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	access, accessExp, err := r.tokens.IssueAccess(acc)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	if err := r.storage.SetRefreshRef(ctx, acc.ID, ref); err != nil {
		return Session{}, fmt.Errorf("failed to store refresh reference: %w", err)
	}

	return Session{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Account:          acc.View(),
	}, nil
}

// Rotate exchanges a presented refresh token for a new pair.
//
// A token that fails verification is rejected with ErrTokenInvalid and
// changes nothing. A verified token that does not match the stored
// reference, including after logout or a lost race, clears the reference
// and fails with ErrTokenReused.
func (r *RefreshRotator) Rotate(ctx context.Context, presented string) (Session, error) {
	accountID, ref, err := r.tokens.VerifyRefresh(presented)
	if err != nil {
		return Session{}, err
	}

	acc, err := r.storage.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Session{}, ErrTokenInvalid
		}
		return Session{}, fmt.Errorf("failed to load account: %w", err)
	}
	if acc.IsDeleted {
		if err := r.storage.SetRefreshRef(ctx, acc.ID, ""); err != nil {
			return Session{}, errors.Join(ErrInvalidCredentials, err)
		}
		return Session{}, ErrInvalidCredentials
	}
	if acc.RefreshTokenRef == "" || acc.RefreshTokenRef != ref {
		return Session{}, r.revoke(ctx, acc.ID)
	}

	refresh, nextRef, refreshExp, err := r.tokens.IssueRefresh(acc.ID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	if err := r.storage.SwapRefreshRef(ctx, acc.ID, ref, nextRef); err != nil {
		if errors.Is(err, ErrRefMismatch) {
			return Session{}, r.revoke(ctx, acc.ID)
		}
		return Session{}, fmt.Errorf("failed to rotate refresh reference: %w", err)
	}

	access, accessExp, err := r.tokens.IssueAccess(acc)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue access token: %w", err)
	}

	return Session{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Account:          acc.View(),
	}, nil
}

// End clears the account's refresh reference.
func (r *RefreshRotator) End(ctx context.Context, accountID uuid.UUID) error {
	if err := r.storage.SetRefreshRef(ctx, accountID, ""); err != nil && !errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("failed to clear refresh reference: %w", err)
	}
	return nil
}

func (r *RefreshRotator) revoke(ctx context.Context, accountID uuid.UUID) error {
	if err := r.storage.SetRefreshRef(ctx, accountID, ""); err != nil {
		return errors.Join(ErrTokenReused, err)
	}
	return ErrTokenReused
}
