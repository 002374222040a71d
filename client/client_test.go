package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, sub, email string, roles, perms []string) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{
		"sub":         sub,
		"email":       email,
		"roles":       roles,
		"permissions": perms,
	})
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

type fakeAPI struct {
	t            *testing.T
	refreshHits  atomic.Int64
	refreshDelay time.Duration
	cookieValue  atomic.Value
	rejectNext   atomic.Bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "hunter22" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.setCookie(w, "refresh-1")
		token := makeToken(f.t, "7", req.Email, []string{"USER"}, []string{"users.view", "dashboard.view"})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":   map[string]any{"id": 7, "email": req.Email, "name": "Test", "roles": []string{"USER"}},
			"tokens": map[string]any{"accessToken": token, "expiresIn": 900},
		})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshHits.Add(1)
		time.Sleep(f.refreshDelay)
		cookie, err := r.Cookie("refresh_token")
		current, _ := f.cookieValue.Load().(string)
		if f.rejectNext.Load() || err != nil || cookie.Value != current {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.setCookie(w, current+"r")
		token := makeToken(f.t, "7", "a@example.com", []string{"USER"}, []string{"users.view"})
		_ = json.NewEncoder(w).Encode(map[string]any{"accessToken": token, "expiresIn": 900})
	})
	mux.HandleFunc("GET /users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.cookieValue.Store("")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"logged_out"}`))
	})
	return mux
}

func (f *fakeAPI) setCookie(w http.ResponseWriter, value string) {
	f.cookieValue.Store(value)
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: value, Path: "/auth", HttpOnly: true})
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{t: t}
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)
	return c, api
}

func TestLoginPopulatesMirror(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "a@example.com", "hunter22", false))

	session := c.Session()
	assert.Equal(t, StateAuthenticated, session.State())
	assert.True(t, session.Can("users.view", "dashboard.view"))
	assert.False(t, session.Can("roles.edit"))
	assert.NotEmpty(t, c.AccessToken())
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	c, _ := newTestClient(t)

	err := c.Login(context.Background(), "a@example.com", "wrong", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, StateAnonymous, c.Session().State())
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "a@example.com", "hunter22", false))

	api.refreshHits.Store(0)
	api.refreshDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Refresh(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), api.refreshHits.Load(), "concurrent refreshes must share one request")
	assert.Equal(t, StateAuthenticated, c.Session().State())
}

func TestRejectedRefreshResetsSession(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "a@example.com", "hunter22", false))

	api.rejectNext.Store(true)
	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, StateAnonymous, c.Session().State())
	assert.Empty(t, c.AccessToken())
	assert.False(t, c.Session().Can("users.view"))
}

func TestForbiddenDoesNotSignOut(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "a@example.com", "hunter22", false))

	_, err := c.Do(ctx, http.MethodGet, "/users/", nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, StateAuthenticated, c.Session().State())
	assert.True(t, c.Session().Can("users.view"))
}

func TestBootstrapWithoutCookieStaysAnonymous(t *testing.T) {
	c, _ := newTestClient(t)

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, StateAnonymous, c.Session().State())
}

func TestBootstrapRestoresSessionFromCookie(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "a@example.com", "hunter22", false))

	// A second client sharing the jar stands in for a process restart
	// with a persisted cookie store.
	restarted, err := New(Config{BaseURL: c.baseURL, HTTPClient: c.http})
	require.NoError(t, err)

	require.NoError(t, restarted.Bootstrap(ctx))
	assert.Equal(t, StateAuthenticated, restarted.Session().State())
	assert.True(t, restarted.Session().Can("users.view"))
}

func TestLogoutResetsMirror(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "a@example.com", "hunter22", false))

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, StateAnonymous, c.Session().State())
	assert.Empty(t, c.AccessToken())
}
