// Package email sends transactional emails through Postmark, or writes them
// to disk in development.
package email

import (
	"context"
	"fmt"
	"net/mail"
)

// EmailSender sends one email.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes a single outbound email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks the fields every sender requires.
func (p SendEmailParams) Validate() error {
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidParams, p.SendTo)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// New picks the Postmark sender when credentials are configured and the
// dev file sender otherwise.
func New(cfg Config) (EmailSender, error) {
	if cfg.PostmarkEnabled() {
		client, err := NewPostmarkClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return NewDevSender(cfg.DevDir), nil
}
