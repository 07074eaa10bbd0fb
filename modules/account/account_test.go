package account_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ztruyen/ztc-auth/handler"
	"github.com/ztruyen/ztc-auth/modules/account"
	"github.com/ztruyen/ztc-auth/pkg/cookie"
	"github.com/ztruyen/ztc-auth/pkg/email"
	"github.com/ztruyen/ztc-auth/pkg/password"
	"github.com/ztruyen/ztc-auth/pkg/turnstile"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

func testConfig() auth.Config {
	return auth.Config{
		Tokens: auth.TokenConfig{
			AccessSecret:  strings.Repeat("a", 32),
			RefreshSecret: strings.Repeat("r", 32),
			Issuer:        "ztc-auth",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    168 * time.Hour,
		},
		Reset: auth.ResetConfig{
			TokenTTL: 15 * time.Minute,
			URL:      "https://ztruyen.io/reset-password",
		},
		FrontendURL:          "https://ztruyen.io",
		FrontendCallbackPath: "/auth/callback",
		OAuthStateTTL:        10 * time.Minute,
		CollaboratorTimeout:  time.Second,
	}
}

type botVerifier struct {
	err   error
	calls int
	ip    string
	mu    sync.Mutex
}

func (b *botVerifier) Verify(_ context.Context, _ string, remoteIP string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.ip = remoteIP
	return b.err
}

type captureSender struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
}

func (c *captureSender) SendEmail(_ context.Context, p email.SendEmailParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, p)
	return nil
}

var resetTokenRe = regexp.MustCompile(`token=([0-9a-f]{64})`)

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *captureSender) lastToken(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	m := resetTokenRe.FindStringSubmatch(c.sent[len(c.sent)-1].BodyHTML)
	require.Len(t, m, 2)
	return m[1]
}

type testEnv struct {
	server *httptest.Server
	tokens *auth.Tokens
	bot    *botVerifier
	mail   *captureSender
	jar    *cookie.Manager
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig()
	tokens, err := auth.NewTokens(cfg.Tokens)
	require.NoError(t, err)

	env := &testEnv{tokens: tokens, bot: &botVerifier{}, mail: &captureSender{}}
	svc := auth.NewService(auth.NewMemoryStorage(), password.NewBcrypt(password.WithCost(bcrypt.MinCost)), tokens, cfg,
		auth.WithMailer(env.mail))

	env.jar, err = cookie.New(cookie.DefaultConfig())
	require.NoError(t, err)

	mod := account.New(svc, env.jar, account.WithBotVerifier(env.bot))
	mux := http.NewServeMux()
	mux.Handle("/auth/", http.StripPrefix("/auth", mod.Handler()))
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) client() *http.Client {
	c := e.server.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

func (e *testEnv) do(t *testing.T, method, path, body string, mutate ...func(*http.Request)) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range mutate {
		fn(req)
	}
	resp, err := e.client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

type sessionBody struct {
	AccessToken string    `json:"access_token"`
	User        auth.View `json:"user"`
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Data
}

func decodeError(t *testing.T, resp *http.Response) handler.ErrorDetail {
	t.Helper()
	var env handler.JSONResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotNil(t, env.Error)
	return *env.Error
}

func refreshCookie(t *testing.T, jar *cookie.Manager, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == jar.Name() {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", jar.Name())
	return nil
}

func assertNoCookie(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Empty(t, resp.Header.Values("Set-Cookie"))
}

const registerBody = `{"name":"Reader","email":"reader@example.com","password":"secret123","birthday":"2000-01-02","age":24,"gender":"female","botToken":"ok"}`

func TestRegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	regCookie := refreshCookie(t, env.jar, resp)
	assert.True(t, regCookie.HttpOnly)
	assert.Equal(t, "/auth", regCookie.Path)
	assert.InDelta(t, (168 * time.Hour).Seconds(), regCookie.MaxAge, 5)
	reg := decodeData[sessionBody](t, resp)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, "reader@example.com", reg.User.Email)
	assert.Equal(t, 1, env.bot.calls)
	assert.Equal(t, "127.0.0.1", env.bot.ip)

	t.Run("login", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/login", `{"email":"READER@example.com","password":"secret123"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		refreshCookie(t, env.jar, resp)
		assert.Equal(t, reg.User.ID, decodeData[sessionBody](t, resp).User.ID)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/login", `{"email":"reader@example.com","password":"wrong-one"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assertNoCookie(t, resp)
		assert.Equal(t, "invalid_credentials", decodeError(t, resp).Code)
	})

	t.Run("refresh rotates and detects reuse", func(t *testing.T) {
		login := env.do(t, http.MethodPost, "/auth/login", `{"email":"reader@example.com","password":"secret123"}`)
		require.Equal(t, http.StatusOK, login.StatusCode)
		first := refreshCookie(t, env.jar, login)

		resp := env.do(t, http.MethodGet, "/auth/refresh", "", withCookie(first))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		second := refreshCookie(t, env.jar, resp)
		assert.NotEqual(t, first.Value, second.Value)

		reused := env.do(t, http.MethodGet, "/auth/refresh", "", withCookie(first))
		assert.Equal(t, http.StatusUnauthorized, reused.StatusCode)
		assertNoCookie(t, reused)
		assert.Equal(t, "token_reused", decodeError(t, reused).Code)

		revoked := env.do(t, http.MethodGet, "/auth/refresh", "", withCookie(second))
		assert.Equal(t, http.StatusUnauthorized, revoked.StatusCode)
	})

	t.Run("refresh without cookie", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/auth/refresh", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assertNoCookie(t, resp)
		assert.Equal(t, "token_invalid", decodeError(t, resp).Code)
	})

	t.Run("account and logout", func(t *testing.T) {
		login := env.do(t, http.MethodPost, "/auth/login", `{"email":"reader@example.com","password":"secret123"}`)
		require.Equal(t, http.StatusOK, login.StatusCode)
		rc := refreshCookie(t, env.jar, login)
		at := decodeData[sessionBody](t, login).AccessToken

		me := env.do(t, http.MethodGet, "/auth/account", "", bearer(at))
		require.Equal(t, http.StatusOK, me.StatusCode)
		assert.Equal(t, "reader@example.com", decodeData[auth.View](t, me).Email)

		out := env.do(t, http.MethodPost, "/auth/logout", "", bearer(at))
		require.Equal(t, http.StatusOK, out.StatusCode)
		cleared := refreshCookie(t, env.jar, out)
		assert.Empty(t, cleared.Value)
		assert.Negative(t, cleared.MaxAge)

		after := env.do(t, http.MethodGet, "/auth/refresh", "", withCookie(rc))
		assert.Equal(t, http.StatusUnauthorized, after.StatusCode)
	})

	t.Run("logout needs a token", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/logout", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "token_invalid", decodeError(t, resp).Code)

		resp = env.do(t, http.MethodPost, "/auth/logout", "", bearer("garbage"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/register", registerBody)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assertNoCookie(t, resp)
		assert.Equal(t, "duplicate_account", decodeError(t, resp).Code)
	})
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	env := newEnv(t)

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"missing fields", `{"botToken":"ok"}`, []string{"name", "email", "password"}},
		{"bad email", `{"name":"A","email":"not-an-email","password":"secret123"}`, []string{"email"}},
		{"short password", `{"name":"A","email":"a@example.com","password":"12345"}`, []string{"password"}},
		{"age out of range", `{"name":"A","email":"a@example.com","password":"secret123","age":9}`, []string{"age"}},
		{"unknown gender", `{"name":"A","email":"a@example.com","password":"secret123","gender":"other"}`, []string{"gender"}},
		{"bad birthday", `{"name":"A","email":"a@example.com","password":"secret123","birthday":"02/01/2000"}`, []string{"birthday"}},
		{"future birthday", `{"name":"A","email":"a@example.com","password":"secret123","birthday":"2999-01-01"}`, []string{"birthday"}},
		{"long name", `{"name":"` + strings.Repeat("n", 101) + `","email":"a@example.com","password":"secret123"}`, []string{"name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/auth/register", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assertNoCookie(t, resp)
			detail := decodeError(t, resp)
			assert.Equal(t, "validation_error", detail.Code)
			for _, f := range tt.fields {
				assert.Contains(t, detail.Details, f)
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/register", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong content type", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/auth/login", `{}`, func(r *http.Request) {
			r.Header.Set("Content-Type", "text/plain")
		})
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	assert.Zero(t, env.bot.calls)
}

func TestBotCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rejected", turnstile.ErrVerificationFailed, http.StatusForbidden, "bot_check_failed"},
		{"unavailable", turnstile.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newEnv(t)
			env.bot.err = tt.err

			resp := env.do(t, http.MethodPost, "/auth/register", registerBody)
			assert.Equal(t, tt.status, resp.StatusCode)
			assertNoCookie(t, resp)
			assert.Equal(t, tt.code, decodeError(t, resp).Code)

			resp = env.do(t, http.MethodPost, "/auth/forgot-password", `{"email":"reader@example.com","botToken":"x"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Zero(t, env.mail.count())

			resp = env.do(t, http.MethodPost, "/auth/login", `{"email":"reader@example.com","password":"secret123"}`)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "account must not exist")
		})
	}
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	oldCookie := refreshCookie(t, env.jar, resp)

	known := env.do(t, http.MethodPost, "/auth/forgot-password", `{"email":"reader@example.com","botToken":"ok"}`)
	unknown := env.do(t, http.MethodPost, "/auth/forgot-password", `{"email":"ghost@example.com","botToken":"ok"}`)
	require.Equal(t, http.StatusAccepted, known.StatusCode)
	require.Equal(t, http.StatusAccepted, unknown.StatusCode)
	assert.Equal(t,
		decodeData[map[string]string](t, known),
		decodeData[map[string]string](t, unknown))
	assert.Equal(t, 1, env.mail.count())

	token := env.mail.lastToken(t)

	bad := env.do(t, http.MethodPost, "/auth/reset-password", `{"token":"`+strings.Repeat("0", 64)+`","newPassword":"brand-new"}`)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, "reset_token_invalid_or_expired", decodeError(t, bad).Code)

	short := env.do(t, http.MethodPost, "/auth/reset-password", `{"token":"`+token+`","newPassword":"123"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, short.StatusCode)

	ok := env.do(t, http.MethodPost, "/auth/reset-password", `{"token":"`+token+`","newPassword":"brand-new"}`)
	require.Equal(t, http.StatusOK, ok.StatusCode)
	assertNoCookie(t, ok)

	again := env.do(t, http.MethodPost, "/auth/reset-password", `{"token":"`+token+`","newPassword":"brand-new"}`)
	assert.Equal(t, http.StatusBadRequest, again.StatusCode)

	stale := env.do(t, http.MethodGet, "/auth/refresh", "", withCookie(oldCookie))
	assert.Equal(t, http.StatusUnauthorized, stale.StatusCode)

	login := env.do(t, http.MethodPost, "/auth/login", `{"email":"reader@example.com","password":"brand-new"}`)
	assert.Equal(t, http.StatusOK, login.StatusCode)
}

func TestSocialRoutes(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	t.Run("not mounted without providers", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/auth/google", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	cfg := testConfig()
	tokens, err := auth.NewTokens(cfg.Tokens)
	require.NoError(t, err)
	svc := auth.NewService(auth.NewMemoryStorage(), password.NewBcrypt(password.WithCost(bcrypt.MinCost)), tokens, cfg)
	mod := account.New(svc, env.jar, account.WithSocialProviders(auth.ProviderGoogle))
	srv := httptest.NewServer(http.StripPrefix("/auth", mod.Handler()))
	t.Cleanup(srv.Close)
	client := env.client()

	t.Run("unconfigured provider", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/auth/google?redirect=/library")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "unknown_provider", decodeError(t, resp).Code)
	})

	t.Run("provider denied consent", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/auth/google/callback?error=access_denied&state=abc")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assertNoCookie(t, resp)
		assert.Equal(t, "oauth_code_invalid", decodeError(t, resp).Code)
	})
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	tokens, err := auth.NewTokens(testConfig().Tokens)
	require.NoError(t, err)

	issue := func(role auth.Role) string {
		at, _, err := tokens.IssueAccess(&auth.Account{ID: uuid.New(), Email: "a@example.com", Role: role})
		require.NoError(t, err)
		return at
	}

	var seen auth.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		route  account.Route
		token  string
		status int
		code   string
	}{
		{"public without token", account.Public, "", http.StatusNoContent, ""},
		{"missing token", account.Authenticated(), "", http.StatusUnauthorized, "token_invalid"},
		{"bad token", account.Authenticated(), "not-a-jwt", http.StatusUnauthorized, "token_invalid"},
		{"any role", account.Authenticated(), issue(auth.RoleUser), http.StatusNoContent, ""},
		{"role allowed", account.Authenticated(auth.RoleAdmin, auth.RoleAuthor), issue(auth.RoleAuthor), http.StatusNoContent, ""},
		{"role denied", account.Authenticated(auth.RoleAdmin), issue(auth.RoleUser), http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := account.Authorize(tt.route, tokens, nil)(next)
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				var body handler.JSONResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				require.NotNil(t, body.Error)
				assert.Equal(t, tt.code, body.Error.Code)
			}
		})
	}

	t.Run("principal is stored", func(t *testing.T) {
		h := account.Authorize(account.Authenticated(), tokens, nil)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issue(auth.RoleAdmin))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, auth.RoleAdmin, seen.Role)
	})
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{auth.ErrDuplicateAccount, http.StatusConflict, "duplicate_account"},
		{auth.ErrTokenReused, http.StatusUnauthorized, "token_reused"},
		{auth.ErrResetTokenInvalid, http.StatusBadRequest, "reset_token_invalid_or_expired"},
		{auth.ErrAccountLinkRequired, http.StatusConflict, "account_link_required"},
		{auth.ErrOAuthStateInvalid, http.StatusBadRequest, "oauth_state_invalid"},
		{auth.ErrUnknownProvider, http.StatusNotFound, "unknown_provider"},
		{auth.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{turnstile.ErrVerificationFailed, http.StatusForbidden, "bot_check_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, detail := handler.Classify(tt.err, account.MapError)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, detail.Code)
			assert.NotContains(t, detail.Message, "auth:")
		})
	}

	status, detail := handler.Classify(assert.AnError, account.MapError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", detail.Code)
}
