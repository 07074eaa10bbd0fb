package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errNoChange = errors.New("auth: no change")

// MemoryStorage is an in-process Storage for tests and local development.
type MemoryStorage struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
	byEmail  map[string]uuid.UUID
	now      func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: make(map[uuid.UUID]*Account),
		byEmail:  make(map[string]uuid.UUID),
		now:      time.Now,
	}
}

func (s *MemoryStorage) CreateAccount(_ context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[acc.Email]; taken {
		return ErrDuplicateAccount
	}
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	stored := *acc
	s.accounts[acc.ID] = &stored
	s.byEmail[acc.Email] = acc.ID
	return nil
}

func (s *MemoryStorage) AccountByID(_ context.Context, id uuid.UUID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *MemoryStorage) AccountByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *MemoryStorage) SetRefreshRef(_ context.Context, id uuid.UUID, ref string) error {
	return s.update(id, func(acc *Account) error {
		acc.RefreshTokenRef = ref
		return nil
	})
}

func (s *MemoryStorage) SwapRefreshRef(_ context.Context, id uuid.UUID, expected, next string) error {
	return s.update(id, func(acc *Account) error {
		if acc.RefreshTokenRef == "" || acc.RefreshTokenRef != expected {
			return ErrRefMismatch
		}
		acc.RefreshTokenRef = next
		return nil
	})
}

func (s *MemoryStorage) SetResetToken(_ context.Context, id uuid.UUID, hash string, expiry time.Time) error {
	return s.update(id, func(acc *Account) error {
		acc.ResetTokenHash = hash
		if hash == "" {
			acc.ResetTokenExpiry = time.Time{}
		} else {
			acc.ResetTokenExpiry = expiry
		}
		return nil
	})
}

func (s *MemoryStorage) ClearResetToken(_ context.Context, id uuid.UUID, hash string) error {
	err := s.update(id, func(acc *Account) error {
		if hash == "" || acc.ResetTokenHash != hash {
			return errNoChange
		}
		acc.ResetTokenHash = ""
		acc.ResetTokenExpiry = time.Time{}
		return nil
	})
	if errors.Is(err, errNoChange) || errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	return err
}

func (s *MemoryStorage) ConsumeResetToken(_ context.Context, hash string, now time.Time, passwordHash string) (*Account, error) {
	if hash == "" {
		return nil, ErrAccountNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ResetTokenHash != hash || !acc.ResetTokenExpiry.After(now) || acc.IsDeleted {
			continue
		}
		acc.PasswordHash = passwordHash
		acc.ResetTokenHash = ""
		acc.ResetTokenExpiry = time.Time{}
		acc.RefreshTokenRef = ""
		acc.UpdatedAt = s.now()
		cp := *acc
		return &cp, nil
	}
	return nil, ErrAccountNotFound
}

// Len returns the number of stored accounts, deleted ones included.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// SoftDelete marks an account deleted and ends its session.
func (s *MemoryStorage) SoftDelete(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(acc *Account) error {
		now := s.now()
		acc.IsDeleted = true
		acc.DeletedAt = &now
		acc.RefreshTokenRef = ""
		return nil
	})
}

func (s *MemoryStorage) update(id uuid.UUID, fn func(*Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if err := fn(acc); err != nil {
		return err
	}
	acc.UpdatedAt = s.now()
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
