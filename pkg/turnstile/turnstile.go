// Package turnstile verifies Cloudflare Turnstile tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ztruyen/ztc-auth/pkg/retry"
)

const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type Config struct {
	Secret    string `env:"TURNSTILE_SECRET"`
	VerifyURL string `env:"TURNSTILE_VERIFY_URL" envDefault:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`
}

// Verifier answers whether a request came from a human.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Client calls the siteverify endpoint.
type Client struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
	policy     retry.Policy
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(cl *Client) { cl.policy = p }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	c := &Client{
		secret:     cfg.Secret,
		verifyURL:  cfg.VerifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy:     retry.Default(),
	}
	if c.verifyURL == "" {
		c.verifyURL = DefaultVerifyURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
	Action     string   `json:"action"`
}

// Verify returns nil for a valid token, ErrVerificationFailed for a missing
// or rejected one, and ErrUnavailable when Cloudflare cannot be reached or
// rejects our own credentials.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrVerificationFailed
	}

	form := url.Values{"secret": {c.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	res, err := retry.Do(ctx, c.policy, func(ctx context.Context) (siteverifyResponse, error) {
		return c.post(ctx, form)
	})
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	if res.Success {
		return nil
	}
	for _, code := range res.ErrorCodes {
		switch code {
		case "missing-input-secret", "invalid-input-secret":
			return fmt.Errorf("%w: %s", ErrUnavailable, code)
		}
	}
	return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(res.ErrorCodes, ","))
}

func (c *Client) post(ctx context.Context, form url.Values) (siteverifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return siteverifyResponse{}, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return siteverifyResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return siteverifyResponse{}, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return siteverifyResponse{}, retry.Permanent(fmt.Errorf("invalid siteverify response: %w", err))
	}
	return out, nil
}

type disabled struct{}

func (disabled) Verify(context.Context, string, string) error { return nil }

// Disabled accepts every request. It is used in development when no secret
// is configured.
func Disabled() Verifier { return disabled{} }

var _ Verifier = (*Client)(nil)
