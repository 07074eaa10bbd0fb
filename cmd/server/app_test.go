package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztruyen/ztc-auth/pkg/config"
	"github.com/ztruyen/ztc-auth/pkg/logger"
)

func testEnviron(extra map[string]string) map[string]string {
	env := map[string]string{
		"APP_ENV":              "development",
		"STORAGE_DRIVER":       "memory",
		"OAUTH_STATE_STORE":    "memory",
		"JWT_ACCESS_SECRET":    strings.Repeat("a", 32),
		"JWT_REFRESH_SECRET":   strings.Repeat("r", 32),
		"FRONTEND_URL":         "https://ztruyen.io",
		"RESET_PASSWORD_URL":   "https://ztruyen.io/reset-password",
		"SENDER_EMAIL":         "no-reply@ztruyen.io",
		"SUPPORT_EMAIL":        "support@ztruyen.io",
		"PASSWORD_BCRYPT_COST": "4",
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("memory drivers", func(t *testing.T) {
		t.Parallel()
		cfg, err := loadConfig(config.WithEnvironment(testEnviron(nil)))
		require.NoError(t, err)
		assert.Equal(t, driverMemory, cfg.StorageDriver)
		assert.Equal(t, "ZTC_token", cfg.Cookie.Name)
		assert.Equal(t, ":8080", cfg.HTTP.Addr)
		assert.True(t, cfg.env.IsDevelopment())
	})

	t.Run("mongo section is required for the mongo driver", func(t *testing.T) {
		t.Parallel()
		_, err := loadConfig(config.WithEnvironment(testEnviron(map[string]string{"STORAGE_DRIVER": "mongo"})))
		assert.ErrorIs(t, err, config.ErrParsingConfig)

		cfg, err := loadConfig(config.WithEnvironment(testEnviron(map[string]string{
			"STORAGE_DRIVER": "mongo",
			"MONGODB_URL":    "mongodb://localhost:27017",
		})))
		require.NoError(t, err)
		assert.Equal(t, "ztruyen", cfg.mongo.Database)
	})

	t.Run("rejected combinations", func(t *testing.T) {
		t.Parallel()
		for name, extra := range map[string]map[string]string{
			"unknown driver":        {"STORAGE_DRIVER": "sqlite"},
			"unknown state store":   {"OAUTH_STATE_STORE": "etcd"},
			"memory in production":  {"APP_ENV": "production", "TURNSTILE_SECRET": "s"},
			"no bot secret in prod": {"APP_ENV": "production", "STORAGE_DRIVER": "postgres", "PG_CONN_URL": "postgres://localhost/ztc"},
		} {
			_, err := loadConfig(config.WithEnvironment(testEnviron(extra)))
			assert.Error(t, err, name)
		}
	})

	t.Run("missing secrets", func(t *testing.T) {
		t.Parallel()
		env := testEnviron(nil)
		delete(env, "JWT_ACCESS_SECRET")
		_, err := loadConfig(config.WithEnvironment(env))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestBuildApp(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(config.WithEnvironment(testEnviron(map[string]string{
		"EMAIL_DEV_DIR":        t.TempDir(),
		"GOOGLE_CLIENT_ID":     "gid",
		"GOOGLE_CLIENT_SECRET": "gsecret",
		"GOOGLE_REDIRECT_URL":  "https://api.ztruyen.io/auth/google/callback",
	})))
	require.NoError(t, err)

	a, err := buildApp(context.Background(), cfg, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })

	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)
	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	get := func(path string) *http.Response {
		resp, err := client.Get(srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusOK, get("/health/live").StatusCode)
	assert.Equal(t, http.StatusOK, get("/health/ready").StatusCode)

	live := get("/health/live")
	assert.NotEmpty(t, live.Header.Get("X-Request-ID"))

	google := get("/auth/google?redirect=/library")
	assert.Equal(t, http.StatusFound, google.StatusCode)
	assert.Contains(t, google.Header.Get("Location"), "accounts.google.com")

	assert.Equal(t, http.StatusNotFound, get("/auth/facebook").StatusCode)

	resp, err := client.Post(srv.URL+"/auth/register", "application/json", strings.NewReader(
		`{"name":"Reader","email":"reader@example.com","password":"secret123"}`))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var cookieNames []string
	for _, c := range resp.Cookies() {
		cookieNames = append(cookieNames, c.Name)
		assert.False(t, c.Secure, "development cookies are not Secure")
	}
	assert.Contains(t, cookieNames, "ZTC_token")

	missing := get("/nowhere")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(missing.Body).Decode(&body))
	assert.Equal(t, "not_found", body.Error.Code)

	metrics := get("/metrics")
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}
