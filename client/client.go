package client

import (
	"bytes"
	"context"
	"errors"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API origin, e.g. "https://admin.example.com".
	BaseURL string
	// HTTPClient is optional. A cookie jar is installed if the supplied
	// client has none; the refresh cookie must ride the jar, application
	// code never sees it.
	HTTPClient *http.Client
}

// Client talks to the auth API and keeps the Session mirror current.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session

	mu          sync.RWMutex
	accessToken string

	refreshGroup singleflight.Group
}

// New constructs a Client with an anonymous session.
func New(cfg Config) (*Client, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("client: cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		session: NewSession(),
	}, nil
}

// Session exposes the authorization mirror.
func (c *Client) Session() *Session {
	return c.session
}

// AccessToken returns the current bearer token, empty when anonymous.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

type userBody struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type tokensBody struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type sessionBody struct {
	User   userBody   `json:"user"`
	Tokens tokensBody `json:"tokens"`
}

// Login signs in and populates the mirror from the issued access token.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) error {
	payload := map[string]any{"email": email, "password": password, "rememberMe": rememberMe}
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", payload, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	var body sessionBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("client: decode login response: %w", err)
	}
	c.adopt(body)
	return nil
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, email, name, password, passwordConfirm string) error {
	payload := map[string]any{
		"email":           email,
		"name":            name,
		"password":        password,
		"passwordConfirm": passwordConfirm,
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/register", payload, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return apiError(resp)
	}
	var body sessionBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("client: decode register response: %w", err)
	}
	c.adopt(body)
	return nil
}

// Refresh rotates the refresh cookie and renews the access token.
// Concurrent callers collapse into one request; a rotated-out token racing
// a second refresh would otherwise kill the session. A rejected refresh
// resets the mirror to anonymous.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return nil, c.refreshOnce(ctx)
	})
	return err
}

func (c *Client) refreshOnce(ctx context.Context) error {
	prev := c.session.State()
	c.session.beginLoading()
	resp, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, false)
	if err != nil {
		// Transport failure is not a rejection; keep the session as it
		// was so a flaky network cannot sign the user out.
		c.session.setState(prev)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.expire()
		return ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		c.session.setState(prev)
		return apiError(resp)
	}
	var body tokensBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.expire()
		return fmt.Errorf("client: decode refresh response: %w", err)
	}
	user, roles, perms, err := claimsFromToken(body.AccessToken)
	if err != nil {
		c.expire()
		return err
	}
	c.setToken(body.AccessToken)
	c.session.setAuthenticated(user, roles, perms)
	return nil
}

// Bootstrap restores a session from a stored refresh cookie, e.g. at
// process start. Without a valid cookie the session simply stays anonymous.
func (c *Client) Bootstrap(ctx context.Context) error {
	err := c.Refresh(ctx)
	if err == nil || errors.Is(err, ErrSessionExpired) {
		return nil
	}
	return err
}

// Logout ends the server-side session and resets the mirror. The mirror is
// reset even when the server call fails; local state must not outlive the
// user's intent to sign out.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, true)
	c.expire()
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	drain(resp)
	return nil
}

// Me fetches the caller's snapshot from the server and reconciles the
// mirror with it.
func (c *Client) Me(ctx context.Context) (UserInfo, []string, error) {
	resp, err := c.doAuthed(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return UserInfo{}, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, nil, apiError(resp)
	}
	var body struct {
		User struct {
			ID    int64    `json:"id"`
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"user"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return UserInfo{}, nil, fmt.Errorf("client: decode me response: %w", err)
	}
	user := UserInfo{ID: body.User.ID, Email: body.User.Email}
	c.session.setAuthenticated(user, body.User.Roles, body.Permissions)
	return user, body.Permissions, nil
}

// Do performs an authenticated API request, transparently refreshing once
// on an expired access token. A 403 maps to ErrForbidden and never touches
// the session: lacking a permission is not a sign-out event.
func (c *Client) Do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	return c.doAuthed(ctx, method, path, payload)
}

func (c *Client) doAuthed(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	resp, err := c.do(ctx, method, path, payload, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		resp.Body.Close()
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		resp, err = c.do(ctx, method, path, payload, true)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode == http.StatusForbidden {
		drain(resp)
		resp.Body.Close()
		return nil, ErrForbidden
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, authed bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if token := c.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.http.Do(req)
}

func (c *Client) adopt(body sessionBody) {
	c.setToken(body.Tokens.AccessToken)
	user := UserInfo{ID: body.User.ID, Email: body.User.Email, Name: body.User.Name}
	_, _, perms, err := claimsFromToken(body.Tokens.AccessToken)
	if err != nil {
		perms = nil
	}
	c.session.setAuthenticated(user, body.User.Roles, perms)
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) expire() {
	c.setToken("")
	c.session.reset()
}

// claimsFromToken decodes the access token payload without verifying the
// signature. The mirror only needs the embedded snapshot; verification is
// the server's job, and the token came off a TLS response we just made.
func claimsFromToken(token string) (UserInfo, []string, []string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return UserInfo{}, nil, nil, fmt.Errorf("client: malformed access token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return UserInfo{}, nil, nil, fmt.Errorf("client: decode access token claims: %w", err)
	}
	var claims struct {
		Sub         string   `json:"sub"`
		Email       string   `json:"email"`
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return UserInfo{}, nil, nil, fmt.Errorf("client: parse access token claims: %w", err)
	}
	id, _ := strconv.ParseInt(claims.Sub, 10, 64)
	return UserInfo{ID: id, Email: claims.Email}, claims.Roles, claims.Permissions, nil
}

func apiError(resp *http.Response) error {
	defer drain(resp)
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&problem)
	return &APIError{Status: resp.StatusCode, Title: problem.Title, Detail: problem.Detail}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
}
