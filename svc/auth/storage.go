package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists accounts. Implementations must make every method a
// single atomic operation on one record.
type Storage interface {
	// CreateAccount inserts a new account. It returns ErrDuplicateAccount
	// when the email is taken, leaving no partial record behind.
	CreateAccount(ctx context.Context, acc *Account) error

	// AccountByID and AccountByEmail return ErrAccountNotFound when absent.
	// Soft-deleted accounts are returned; callers decide how to treat them.
	AccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)

	// SetRefreshRef overwrites the refresh reference. An empty ref ends
	// the session.
	SetRefreshRef(ctx context.Context, id uuid.UUID, ref string) error

	// SwapRefreshRef replaces the reference only while it still equals
	// expected. It returns ErrRefMismatch otherwise.
	SwapRefreshRef(ctx context.Context, id uuid.UUID, expected, next string) error

	// SetResetToken sets the reset hash and expiry together. An empty hash
	// clears both.
	SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiry time.Time) error

	// ClearResetToken clears both reset fields only while the stored hash
	// still equals hash. A newer token is left alone and no error is
	// returned.
	ClearResetToken(ctx context.Context, id uuid.UUID, hash string) error

	// ConsumeResetToken finds the account whose reset hash equals hash and
	// whose expiry is after now. In the same update it stores passwordHash,
	// clears both reset fields and the refresh reference. It returns
	// ErrAccountNotFound when nothing matches.
	ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash string) (*Account, error)
}
