package auth

import (
	"encoding/json"

	"golang.org/x/oauth2/facebook"
)

const facebookProfileURL = "https://graph.facebook.com/v19.0/me?fields=id,name,email,picture.type(large)"

// FacebookConfig holds the Facebook OAuth client registration.
type FacebookConfig struct {
	ClientID     string   `env:"FACEBOOK_CLIENT_ID"`
	ClientSecret string   `env:"FACEBOOK_CLIENT_SECRET"`
	RedirectURL  string   `env:"FACEBOOK_REDIRECT_URL"`
	Scopes       []string `env:"FACEBOOK_SCOPES" envSeparator:"," envDefault:"email,public_profile"`
}

func (c FacebookConfig) oauth() OAuthConfig {
	return OAuthConfig{ClientID: c.ClientID, ClientSecret: c.ClientSecret, RedirectURL: c.RedirectURL, Scopes: c.Scopes}
}

func (c FacebookConfig) Enabled() bool { return c.oauth().Enabled() }

type facebookUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// NewFacebookAdapter creates the Facebook provider adapter. The Graph API
// only returns confirmed addresses, so any email it reports is treated as
// verified.
func NewFacebookAdapter(cfg FacebookConfig, opts ...AdapterOption) ProviderAdapter {
	a := newOAuthAdapter(ProviderFacebook, cfg.oauth(), facebook.Endpoint, facebookProfileURL, opts)
	a.decode = func(body []byte) (ProviderProfile, error) {
		var u facebookUser
		if err := json.Unmarshal(body, &u); err != nil {
			return ProviderProfile{}, err
		}
		return ProviderProfile{
			ProviderUserID: u.ID,
			Email:          u.Email,
			EmailVerified:  u.Email != "",
			Name:           u.Name,
			AvatarURL:      u.Picture.Data.URL,
		}, nil
	}
	return a
}
