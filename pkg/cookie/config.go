package cookie

// Config describes the refresh token cookie.
type Config struct {
	Name     string `env:"REFRESH_COOKIE_NAME" envDefault:"ZTC_token"`
	Path     string `env:"COOKIE_PATH" envDefault:"/auth"`
	Domain   string `env:"COOKIE_DOMAIN" envDefault:""`
	SameSite string `env:"COOKIE_SAME_SITE" envDefault:"lax"`
}

// DefaultConfig returns default cookie configuration
func DefaultConfig() Config {
	return Config{
		Name:     "ZTC_token",
		Path:     "/auth",
		SameSite: "lax",
	}
}
