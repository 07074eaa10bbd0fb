package auth

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAuthor Role = "author"
	RoleUser   Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAuthor || r == RoleUser
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	return slices.Contains(roles, r)
}

// Provider identifies how an account was created.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// Gender values accepted at registration.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderLGBT   = "lgbt"
)

// Account is the persisted credential record.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Provider     Provider
	Role         Role

	// RefreshTokenRef is the SHA-256 of the live refresh token's jti.
	// Empty means no active session.
	RefreshTokenRef string

	ResetTokenHash   string
	ResetTokenExpiry time.Time

	Name          string
	AvatarURL     string
	AvatarID      string
	CoverID       string
	AvatarFrameID string
	Bio           string
	Age           int
	Gender        string
	Birthday      *time.Time

	IsDeleted bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account can log in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// View is the minimal projection returned to clients.
type View struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Provider  Provider  `json:"provider"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

func (a *Account) View() View {
	return View{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		Provider:  a.Provider,
		AvatarURL: a.AvatarURL,
	}
}

// Session is the result of every successful authentication.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Account          View
}

// Principal is the verified identity attached to a request.
type Principal struct {
	AccountID uuid.UUID
	Role      Role
}

// RegisterInput carries a validated local registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Birthday *time.Time
	Age      int
	Gender   string
}

// ProviderProfile is the normalized profile returned by an OAuth provider.
type ProviderProfile struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
}
