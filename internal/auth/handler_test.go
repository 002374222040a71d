package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) (*authFixture, http.Handler) {
	t.Helper()
	f := newAuthFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(HandlerConfig{
		Logger:        logger,
		Service:       f.service,
		Tokens:        f.tokens,
		Authenticator: NewAuthenticator(f.tokens, logger),
	})
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return f, r
}

func postJSON(t *testing.T, router http.Handler, path string, payload any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func refreshCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	t.Fatal("no refresh cookie in response")
	return nil
}

func TestLoginSetsScopedRefreshCookie(t *testing.T) {
	f, router := newAuthRouter(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	rr := postJSON(t, router, "/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	cookie := refreshCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/auth", cookie.Path)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.NotEmpty(t, cookie.Value)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "admin@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.EqualValues(t, 900, resp.Tokens.ExpiresIn)
	assert.NotContains(t, rr.Body.String(), cookie.Value, "refresh token must never appear in the body")
}

func TestLoginValidationFailure(t *testing.T) {
	_, router := newAuthRouter(t)

	rr := postJSON(t, router, "/auth/login", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Password")
}

func TestLoginBadCredentialsIs401(t *testing.T) {
	f, router := newAuthRouter(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	rr := postJSON(t, router, "/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegisterReturnsSessionAndCookie(t *testing.T) {
	_, router := newAuthRouter(t)

	rr := postJSON(t, router, "/auth/register", map[string]any{
		"email":           "new@example.com",
		"name":            "New User",
		"password":        "hunter2222",
		"passwordConfirm": "hunter2222",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotEmpty(t, refreshCookie(t, rr).Value)
}

func TestRefreshRotatesCookie(t *testing.T) {
	f, router := newAuthRouter(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	login := postJSON(t, router, "/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, login.Code)
	original := refreshCookie(t, login)

	refresh := postJSON(t, router, "/auth/refresh", nil, original)
	require.Equal(t, http.StatusOK, refresh.Code, refresh.Body.String())

	rotated := refreshCookie(t, refresh)
	assert.NotEqual(t, original.Value, rotated.Value)

	var tokens tokensPayload
	require.NoError(t, json.Unmarshal(refresh.Body.Bytes(), &tokens))
	assert.NotEmpty(t, tokens.AccessToken)

	// The redeemed cookie is dead; replaying it clears the cookie and 401s.
	replay := postJSON(t, router, "/auth/refresh", nil, original)
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Equal(t, -1, refreshCookie(t, replay).MaxAge)

	// The rotated cookie still works.
	next := postJSON(t, router, "/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusOK, next.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	_, router := newAuthRouter(t)
	rr := postJSON(t, router, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMeRequiresBearerToken(t *testing.T) {
	f, router := newAuthRouter(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	login := postJSON(t, router, "/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "hunter22",
	})
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Tokens.AccessToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "dashboard.view")
	assert.Contains(t, rr.Body.String(), "admin@example.com")
}

func TestLogoutWithCookieEndsThatSession(t *testing.T) {
	f, router := newAuthRouter(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	login := postJSON(t, router, "/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "hunter22",
	})
	cookie := refreshCookie(t, login)

	logout := postJSON(t, router, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, logout.Code)
	assert.Equal(t, -1, refreshCookie(t, logout).MaxAge)

	replay := postJSON(t, router, "/auth/refresh", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
}

func TestLogoutWithBearerOnlyEndsAllSessions(t *testing.T) {
	f, router := newAuthRouter(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	first := postJSON(t, router, "/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "hunter22",
	})
	second := postJSON(t, router, "/auth/login", map[string]any{
		"email":    "admin@example.com",
		"password": "hunter22",
	})

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Tokens.AccessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	for _, c := range []*http.Cookie{refreshCookie(t, first), refreshCookie(t, second)} {
		replay := postJSON(t, router, "/auth/refresh", nil, c)
		assert.Equal(t, http.StatusUnauthorized, replay.Code)
	}
}
