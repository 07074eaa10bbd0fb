package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztruyen/ztc-auth/pkg/cookie"
)

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := cookie.New(cookie.Config{Name: ""})
	assert.ErrorIs(t, err, cookie.ErrInvalidName)

	_, err = cookie.New(cookie.Config{Name: "bad name"})
	assert.ErrorIs(t, err, cookie.ErrInvalidName)

	_, err = cookie.New(cookie.Config{Name: "ZTC_token", SameSite: "sometimes"})
	assert.ErrorIs(t, err, cookie.ErrInvalidSameSite)

	_, err = cookie.New(cookie.Config{Name: "ZTC_token", SameSite: "none"}, cookie.WithSecure(false))
	assert.ErrorIs(t, err, cookie.ErrInsecureSameSite)

	m, err := cookie.New(cookie.Config{Name: "ZTC_token", SameSite: "none"})
	require.NoError(t, err)
	assert.Equal(t, "ZTC_token", m.Name())
}

func TestManager(t *testing.T) {
	t.Parallel()

	m, err := cookie.New(cookie.DefaultConfig(), cookie.WithDomain("ztruyen.io"))
	require.NoError(t, err)

	t.Run("set", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		m.Set(rec, "refresh.jwt", 7*24*time.Hour)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, "ZTC_token", c.Name)
		assert.Equal(t, "refresh.jwt", c.Value)
		assert.Equal(t, "/auth", c.Path)
		assert.Equal(t, "ztruyen.io", c.Domain)
		assert.Equal(t, 604800, c.MaxAge)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	})

	t.Run("clear", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		m.Clear(rec)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
		assert.Empty(t, cookies[0].Value)
		assert.Equal(t, "/auth", cookies[0].Path)
	})

	t.Run("get", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/auth/refresh", nil)
		_, err := m.Get(req)
		assert.ErrorIs(t, err, cookie.ErrCookieNotFound)

		req.AddCookie(&http.Cookie{Name: "ZTC_token", Value: "refresh.jwt"})
		got, err := m.Get(req)
		require.NoError(t, err)
		assert.Equal(t, "refresh.jwt", got)
	})

	t.Run("development cookie is not secure", func(t *testing.T) {
		t.Parallel()
		dev, err := cookie.New(cookie.DefaultConfig(), cookie.WithSecure(false))
		require.NoError(t, err)
		assert.False(t, dev.Cookie("v", time.Minute).Secure)
		assert.Equal(t, 60, dev.Cookie("v", time.Minute).MaxAge)
		assert.Equal(t, -1, dev.Cookie("v", 0).MaxAge)
	})
}

func TestParseSameSite(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]http.SameSite{
		"":       http.SameSiteLaxMode,
		"Lax":    http.SameSiteLaxMode,
		"strict": http.SameSiteStrictMode,
		"NONE":   http.SameSiteNoneMode,
	} {
		got, err := cookie.ParseSameSite(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}
