package email

import (
	"context"
	"errors"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPostmarkAPI struct {
	mock.Mock
}

func (m *mockPostmarkAPI) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(postmark.EmailResponse), args.Error(1)
}

func validConfig() Config {
	return Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "no-reply@ztruyen.io",
		SupportEmail:         "support@ztruyen.io",
	}
}

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()
		client, err := NewPostmarkClient(validConfig())
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"missing server token", func(c *Config) { c.PostmarkServerToken = "" }, "PostmarkServerToken"},
		{"missing account token", func(c *Config) { c.PostmarkAccountToken = "" }, "PostmarkAccountToken"},
		{"invalid sender", func(c *Config) { c.SenderEmail = "nope" }, "SenderEmail"},
		{"invalid support", func(c *Config) { c.SupportEmail = "" }, "SupportEmail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			client, err := NewPostmarkClient(cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestPostmarkClient_SendEmail(t *testing.T) {
	t.Parallel()

	params := SendEmailParams{
		SendTo:   "reader@example.com",
		Subject:  "Reset your password",
		BodyHTML: "<p>hi</p>",
		Tag:      TagPasswordReset,
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		api := &mockPostmarkAPI{}
		api.On("SendEmail", mock.Anything, mock.MatchedBy(func(e postmark.Email) bool {
			return e.From == "no-reply@ztruyen.io" &&
				e.ReplyTo == "support@ztruyen.io" &&
				e.To == params.SendTo &&
				e.Tag == TagPasswordReset &&
				e.TrackLinks == "HtmlOnly"
		})).Return(postmark.EmailResponse{}, nil).Once()

		client := &PostmarkClient{api: api, config: validConfig()}
		require.NoError(t, client.SendEmail(context.Background(), params))
		api.AssertExpectations(t)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		api := &mockPostmarkAPI{}
		api.On("SendEmail", mock.Anything, mock.Anything).
			Return(postmark.EmailResponse{}, errors.New("connection reset")).Once()

		client := &PostmarkClient{api: api, config: validConfig()}
		err := client.SendEmail(context.Background(), params)
		assert.ErrorIs(t, err, ErrFailedToSendEmail)
	})

	t.Run("api error code", func(t *testing.T) {
		t.Parallel()
		api := &mockPostmarkAPI{}
		api.On("SendEmail", mock.Anything, mock.Anything).
			Return(postmark.EmailResponse{ErrorCode: 406, Message: "inactive recipient"}, nil).Once()

		client := &PostmarkClient{api: api, config: validConfig()}
		err := client.SendEmail(context.Background(), params)
		assert.ErrorIs(t, err, ErrFailedToSendEmail)
		assert.Contains(t, err.Error(), "inactive recipient")
	})

	t.Run("invalid params never reach the api", func(t *testing.T) {
		t.Parallel()
		api := &mockPostmarkAPI{}
		client := &PostmarkClient{api: api, config: validConfig()}
		err := client.SendEmail(context.Background(), SendEmailParams{SendTo: "bad"})
		assert.ErrorIs(t, err, ErrInvalidParams)
		api.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})
}
