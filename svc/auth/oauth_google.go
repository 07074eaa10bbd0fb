package auth

import (
	"encoding/json"

	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds the Google OAuth client registration.
type GoogleConfig struct {
	ClientID     string   `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string   `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string   `env:"GOOGLE_REDIRECT_URL"`
	Scopes       []string `env:"GOOGLE_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
}

func (c GoogleConfig) oauth() OAuthConfig {
	return OAuthConfig{ClientID: c.ClientID, ClientSecret: c.ClientSecret, RedirectURL: c.RedirectURL, Scopes: c.Scopes}
}

// Enabled reports whether Google login is configured.
func (c GoogleConfig) Enabled() bool { return c.oauth().Enabled() }

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// NewGoogleAdapter creates the Google provider adapter.
func NewGoogleAdapter(cfg GoogleConfig, opts ...AdapterOption) ProviderAdapter {
	a := newOAuthAdapter(ProviderGoogle, cfg.oauth(), google.Endpoint, googleUserInfoURL, opts)
	a.decode = func(body []byte) (ProviderProfile, error) {
		var u googleUser
		if err := json.Unmarshal(body, &u); err != nil {
			return ProviderProfile{}, err
		}
		return ProviderProfile{
			ProviderUserID: u.ID,
			Email:          u.Email,
			EmailVerified:  u.VerifiedEmail,
			Name:           u.Name,
			AvatarURL:      u.Picture,
		}, nil
	}
	return a
}
