package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// PasswordResetData fills the password reset template.
type PasswordResetData struct {
	Name          string
	ResetLink     string
	ExpireMinutes int
}

// TagPasswordReset is the Postmark tag for reset emails.
const TagPasswordReset = "password-reset"

var passwordResetTemplate = template.Must(template.New("password_reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <p>Hi {{.Name}},</p>
  <p>We received a request to reset the password for your account.</p>
  <p><a href="{{.ResetLink}}" style="display:inline-block;padding:10px 16px;background:#e11d48;color:#fff;text-decoration:none;border-radius:4px;">Reset password</a></p>
  <p>This link expires in {{.ExpireMinutes}} minutes and can be used once.</p>
  <p>If you did not request a reset, you can ignore this email.</p>
</body>
</html>`))

// PasswordReset renders the reset email for to.
func PasswordReset(to string, data PasswordResetData) (SendEmailParams, error) {
	var buf bytes.Buffer
	if err := passwordResetTemplate.Execute(&buf, data); err != nil {
		return SendEmailParams{}, fmt.Errorf("failed to render password reset email: %w", err)
	}
	return SendEmailParams{
		SendTo:   to,
		Subject:  "Reset your password",
		BodyHTML: buf.String(),
		Tag:      TagPasswordReset,
	}, nil
}
