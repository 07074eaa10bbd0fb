package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Manager builds and reads one HttpOnly cookie. Values are set as given;
// the refresh token it carries is already signed.
type Manager struct {
	name string
	opts Options
}

// New creates a Manager from cfg. Options override the config values.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.Name == "" || strings.ContainsAny(cfg.Name, " \t;,=") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, cfg.Name)
	}
	sameSite, err := ParseSameSite(cfg.SameSite)
	if err != nil {
		return nil, err
	}

	o := Options{
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   true,
		SameSite: sameSite,
	}
	if o.Path == "" {
		o.Path = "/"
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.SameSite == http.SameSiteNoneMode && !o.Secure {
		return nil, ErrInsecureSameSite
	}

	return &Manager{name: cfg.Name, opts: o}, nil
}

func (m *Manager) Name() string {
	return m.name
}

// Cookie returns the cookie carrying value for ttl. Max-Age is rounded down
// to whole seconds.
func (m *Manager) Cookie(value string, ttl time.Duration) *http.Cookie {
	c := m.base()
	c.Value = value
	c.MaxAge = int(ttl / time.Second)
	if c.MaxAge <= 0 {
		c.MaxAge = -1
	}
	return c
}

// Expired returns a cookie that makes the browser drop the stored one.
func (m *Manager) Expired() *http.Cookie {
	c := m.base()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// Set writes Cookie(value, ttl) to w.
func (m *Manager) Set(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, m.Cookie(value, ttl))
}

// Clear writes Expired() to w.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.Expired())
}

// Get returns the cookie value or ErrCookieNotFound when it is absent or
// empty.
func (m *Manager) Get(r *http.Request) (string, error) {
	c, err := r.Cookie(m.name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	if c.Value == "" {
		return "", ErrCookieNotFound
	}
	return c.Value, nil
}

func (m *Manager) base() *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Path:     m.opts.Path,
		Domain:   m.opts.Domain,
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: m.opts.SameSite,
	}
}

// ParseSameSite maps "lax", "strict", "none" and "" (lax) to http.SameSite.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSameSite, s)
	}
}
