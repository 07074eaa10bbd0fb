package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ztruyen/ztc-auth/pkg/retry"
)

// OAuthConfig is the per-provider client registration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Enabled reports whether the provider is configured.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// AdapterOption configures provider adapters.
type AdapterOption func(*oauthAdapter)

// WithHTTPClient sets the client used for token exchange and profile calls.
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(a *oauthAdapter) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// WithEndpoint overrides the provider's OAuth endpoint.
func WithEndpoint(e oauth2.Endpoint) AdapterOption {
	return func(a *oauthAdapter) { a.conf.Endpoint = e }
}

// WithProfileURL overrides the provider's profile endpoint.
func WithProfileURL(u string) AdapterOption {
	return func(a *oauthAdapter) {
		if u != "" {
			a.profileURL = u
		}
	}
}

// WithRetryPolicy bounds the exchange and profile calls.
func WithRetryPolicy(p retry.Policy) AdapterOption {
	return func(a *oauthAdapter) { a.policy = p }
}

// WithRequireVerifiedEmail rejects profiles whose email the provider has
// not verified.
func WithRequireVerifiedEmail() AdapterOption {
	return func(a *oauthAdapter) { a.verifiedOnly = true }
}

// oauthAdapter holds what google and facebook have in common: a code
// exchange followed by one JSON profile request.
type oauthAdapter struct {
	provider     Provider
	conf         *oauth2.Config
	httpClient   *http.Client
	profileURL   string
	policy       retry.Policy
	verifiedOnly bool
	decode       func(body []byte) (ProviderProfile, error)
}

func newOAuthAdapter(provider Provider, cfg OAuthConfig, endpoint oauth2.Endpoint, profileURL string, opts []AdapterOption) *oauthAdapter {
	a := &oauthAdapter{
		provider: provider,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		profileURL: profileURL,
		policy:     retry.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *oauthAdapter) ProviderID() Provider { return a.provider }

func (a *oauthAdapter) AuthURL(state string) string {
	return a.conf.AuthCodeURL(state)
}

func (a *oauthAdapter) ResolveProfile(ctx context.Context, code string) (ProviderProfile, error) {
	if code == "" {
		return ProviderProfile{}, ErrOAuthCodeInvalid
	}

	tok, err := retry.Do(ctx, a.policy, func(ctx context.Context) (*oauth2.Token, error) {
		tok, err := a.conf.Exchange(context.WithValue(ctx, oauth2.HTTPClient, a.httpClient), code)
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
				return nil, retry.Permanent(ErrOAuthCodeInvalid)
			}
			return nil, err
		}
		return tok, nil
	})
	if err != nil {
		return ProviderProfile{}, err
	}

	body, err := retry.Do(ctx, a.policy, func(ctx context.Context) ([]byte, error) {
		return a.fetchProfile(ctx, tok.AccessToken)
	})
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("failed to fetch %s profile: %w", a.provider, err)
	}

	profile, err := a.decode(body)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("failed to decode %s profile: %w", a.provider, err)
	}
	if profile.Email == "" {
		return ProviderProfile{}, ErrOAuthEmailMissing
	}
	if a.verifiedOnly && !profile.EmailVerified {
		return ProviderProfile{}, ErrOAuthEmailUnverified
	}
	return profile, nil
}

func (a *oauthAdapter) fetchProfile(ctx context.Context, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.profileURL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid profile response: %w", err)
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%s api returned status %d", a.provider, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("%s api returned status %d", a.provider, resp.StatusCode))
	}
	return body, nil
}

var _ ProviderAdapter = (*oauthAdapter)(nil)
