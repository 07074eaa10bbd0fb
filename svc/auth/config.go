package auth

import "time"

// Config is loaded from the environment by the server command.
type Config struct {
	Tokens TokenConfig
	Reset  ResetConfig

	// FrontendURL is where social logins land after the cookie is set.
	FrontendURL          string `env:"FRONTEND_URL,required"`
	FrontendCallbackPath string `env:"FRONTEND_CALLBACK_PATH" envDefault:"/auth/callback"`

	OAuthStateTTL       time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	CollaboratorTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"5s"`
}

// TokenConfig configures access and refresh token signing.
// The two secrets must differ.
type TokenConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET,required"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET,required"`
	Issuer        string        `env:"JWT_ISSUER" envDefault:"ztc-auth"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
}

// ResetConfig configures the password reset flow.
type ResetConfig struct {
	TokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`
	// URL is the frontend page that accepts ?token=.
	URL string `env:"RESET_PASSWORD_URL,required"`
	// ResponseFloor is the minimum time Forgot takes, whatever the outcome.
	// Zero disables it.
	ResponseFloor time.Duration `env:"RESET_RESPONSE_FLOOR" envDefault:"1s"`
}
