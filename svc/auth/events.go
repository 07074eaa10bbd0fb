package auth

import "context"

// Event names reported to an EventRecorder.
const (
	EventLogin          = "login"
	EventRegister       = "register"
	EventRefresh        = "refresh"
	EventLogout         = "logout"
	EventSocialLogin    = "social_login"
	EventForgotPassword = "forgot_password"
	EventResetPassword  = "reset_password"
)

// OutcomeSuccess is recorded for successful operations. Failures are
// recorded with their ErrorCode, or "error" for unexpected errors.
const OutcomeSuccess = "success"

// EventRecorder observes authentication outcomes.
type EventRecorder interface {
	Record(ctx context.Context, event, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string, string) {}

func outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if code := ErrorCode(err); code != "" {
		return code
	}
	return "error"
}
