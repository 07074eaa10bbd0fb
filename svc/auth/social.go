package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ztruyen/ztc-auth/pkg/sanitizer"
)

// ProviderAdapter hides provider protocol details from the service.
type ProviderAdapter interface {
	ProviderID() Provider

	// AuthURL builds the provider consent URL for state.
	AuthURL(state string) string

	// ResolveProfile exchanges code and fetches the user's profile.
	// Exchange failures caused by a bad code return ErrOAuthCodeInvalid.
	ResolveProfile(ctx context.Context, code string) (ProviderProfile, error)
}

// SocialResolver maps a provider profile onto exactly one account.
//
// Collision policy for an existing email:
//   - same provider: reuse the account;
//   - different provider, no password: reuse it (first-touch linking);
//   - the account has a password: ErrAccountLinkRequired, so a provider
//     asserting the same address cannot take over a password account.
type SocialResolver struct {
	storage Storage
}

func NewSocialResolver(storage Storage) *SocialResolver {
	return &SocialResolver{storage: storage}
}

// Resolve returns the account for profile, creating it when the email is
// unknown. The returned bool reports whether an account was created.
func (r *SocialResolver) Resolve(ctx context.Context, provider Provider, profile ProviderProfile) (*Account, bool, error) {
	email := sanitizer.NormalizeEmail(profile.Email)
	if email == "" {
		return nil, false, ErrOAuthEmailMissing
	}

	acc, err := r.storage.AccountByEmail(ctx, email)
	switch {
	case err == nil:
		acc, err = r.existing(acc, provider)
		return acc, false, err
	case !errors.Is(err, ErrAccountNotFound):
		return nil, false, fmt.Errorf("failed to look up account: %w", err)
	}

	acc = &Account{
		Email:     email,
		Provider:  provider,
		Role:      RoleUser,
		Name:      displayName(profile.Name, email),
		AvatarURL: profile.AvatarURL,
	}
	if err := r.storage.CreateAccount(ctx, acc); err != nil {
		if !errors.Is(err, ErrDuplicateAccount) {
			return nil, false, fmt.Errorf("failed to create account: %w", err)
		}
		// Lost a race with a concurrent first login for the same email.
		existing, lookupErr := r.storage.AccountByEmail(ctx, email)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("failed to look up account: %w", lookupErr)
		}
		acc, err = r.existing(existing, provider)
		return acc, false, err
	}
	return acc, true, nil
}

func (r *SocialResolver) existing(acc *Account, provider Provider) (*Account, error) {
	if acc.IsDeleted {
		return nil, ErrInvalidCredentials
	}
	if acc.Provider == provider {
		return acc, nil
	}
	if acc.HasPassword() {
		return nil, ErrAccountLinkRequired
	}
	return acc, nil
}

func displayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
