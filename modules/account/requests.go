package account

import (
	"time"

	"github.com/ztruyen/ztc-auth/pkg/validator"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

const (
	maxEmailLen    = 255
	maxNameLen     = 100
	minPasswordLen = 6
	minAge         = 10
	maxAge         = 100
)

var genders = []string{auth.GenderMale, auth.GenderFemale, auth.GenderLGBT}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) validate() error {
	return validator.Apply(
		validator.Required("email", r.Email),
		validator.If(r.Email != "", validator.ValidEmail("email", r.Email)),
		validator.MaxLen("email", r.Email, maxEmailLen),
		validator.Required("password", r.Password),
	)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Birthday string `json:"birthday"`
	Age      *int   `json:"age"`
	Gender   string `json:"gender"`
	BotToken string `json:"botToken"`
}

func (r registerRequest) validate(now time.Time) error {
	return validator.Apply(
		validator.Required("name", r.Name),
		validator.MaxLen("name", r.Name, maxNameLen),
		validator.Required("email", r.Email),
		validator.If(r.Email != "", validator.ValidEmail("email", r.Email)),
		validator.MaxLen("email", r.Email, maxEmailLen),
		validator.MinLen("password", r.Password, minPasswordLen),
		validator.If(r.Age != nil, validator.Between("age", deref(r.Age), minAge, maxAge)),
		validator.If(r.Gender != "", validator.InList("gender", r.Gender, genders)),
		validator.If(r.Birthday != "", validator.ValidDate("birthday", r.Birthday)),
		validator.If(r.Birthday != "", validator.PastDate("birthday", r.Birthday, now)),
	)
}

// input converts a validated request.
func (r registerRequest) input() auth.RegisterInput {
	in := auth.RegisterInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Age:      deref(r.Age),
		Gender:   r.Gender,
	}
	if b, err := time.Parse(validator.DateLayout, r.Birthday); err == nil {
		in.Birthday = &b
	}
	return in
}

type forgotPasswordRequest struct {
	Email    string `json:"email"`
	BotToken string `json:"botToken"`
}

func (r forgotPasswordRequest) validate() error {
	return validator.Apply(
		validator.Required("email", r.Email),
		validator.If(r.Email != "", validator.ValidEmail("email", r.Email)),
		validator.MaxLen("email", r.Email, maxEmailLen),
	)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r resetPasswordRequest) validate() error {
	return validator.Apply(
		validator.Required("token", r.Token),
		validator.MinLen("newPassword", r.NewPassword, minPasswordLen),
	)
}

type socialStartRequest struct {
	Redirect string `query:"redirect"`
}

type socialCallbackRequest struct {
	State string `query:"state"`
	Code  string `query:"code"`
	Error string `query:"error"`
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
