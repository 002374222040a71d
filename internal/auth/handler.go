package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hq/meridian/internal/platform/httpx"
	"github.com/meridian-hq/meridian/internal/shared"
)

// RefreshCookieName is the cookie carrying the refresh token. The cookie is
// HttpOnly and path-scoped to /auth so it only travels to refresh/logout.
const RefreshCookieName = "refresh_token"

// HandlerConfig collects handler dependencies.
type HandlerConfig struct {
	Logger        *slog.Logger
	Service       *Service
	Tokens        *TokenManager
	Authenticator *Authenticator
	// RateLimit is applied to the credential-bearing endpoints.
	RateLimit    func(http.Handler) http.Handler
	SecureCookie bool
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	cfg       HandlerConfig
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg, validator: validator.New()}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.cfg.RateLimit != nil {
			r.Use(h.cfg.RateLimit)
		}
		r.Post("/login", h.handleLogin)
		r.Post("/register", h.handleRegister)
	})
	r.Post("/refresh", h.handleRefresh)
	r.With(h.cfg.Authenticator.Optional).Post("/logout", h.handleLogout)
	r.With(h.cfg.Authenticator.Middleware).Get("/me", h.handleMe)
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type userPayload struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type tokensPayload struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type sessionResponse struct {
	User   userPayload   `json:"user"`
	Tokens tokensPayload `json:"tokens"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if fields, ok := h.validate(req); !ok {
		httpx.ValidationProblem(w, fields)
		return
	}

	result, err := h.cfg.Service.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.setRefreshCookie(w, result)
	httpx.JSON(w, http.StatusOK, h.sessionResponse(result))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if fields, ok := h.validate(req); !ok {
		httpx.ValidationProblem(w, fields)
		return
	}

	result, err := h.cfg.Service.Register(r.Context(), req.Email, req.Name, req.Password, req.PasswordConfirm)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.setRefreshCookie(w, result)
	httpx.JSON(w, http.StatusCreated, h.sessionResponse(result))
}

// handleRefresh rotates the refresh token. No body: the refresh cookie is
// the only input, and the response rotates it.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		httpx.RespondError(w, shared.ErrRefreshTokenInvalid)
		return
	}
	userID, tokenID, err := h.cfg.Tokens.ParseRefresh(cookie.Value)
	if err != nil {
		h.clearRefreshCookie(w)
		httpx.RespondError(w, shared.ErrRefreshTokenInvalid)
		return
	}

	result, err := h.cfg.Service.Refresh(r.Context(), userID, tokenID)
	if err != nil {
		h.clearRefreshCookie(w)
		httpx.RespondError(w, err)
		return
	}
	h.setRefreshCookie(w, result)
	httpx.JSON(w, http.StatusOK, tokensPayload{AccessToken: result.AccessToken, ExpiresIn: result.ExpiresIn})
}

// handleLogout ends the session named by the refresh cookie, or every
// session for the bearer-authenticated user when no cookie is present. The
// refresh cookie is always cleared, whatever the server-side outcome.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	defer h.clearRefreshCookie(w)

	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		if userID, tokenID, err := h.cfg.Tokens.ParseRefresh(cookie.Value); err == nil {
			if err := h.cfg.Service.Logout(r.Context(), userID, tokenID); err != nil {
				h.cfg.Logger.Warn("logout session", slog.Any("error", err))
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
		return
	}

	if identity := shared.IdentityFromContext(r.Context()); identity != nil {
		if err := h.cfg.Service.Logout(r.Context(), identity.UserID, ""); err != nil {
			h.cfg.Logger.Warn("logout all sessions", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// handleMe returns the caller's identity snapshot from the verified token.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    identity.UserID,
			"email": identity.Email,
			"roles": identity.Roles,
		},
		"permissions": identity.Permissions,
	})
}

func (h *Handler) sessionResponse(result *Result) sessionResponse {
	return sessionResponse{
		User: userPayload{
			ID:    result.User.ID,
			Email: result.User.Email,
			Name:  result.User.Name,
			Roles: result.Roles,
		},
		Tokens: tokensPayload{
			AccessToken: result.AccessToken,
			ExpiresIn:   result.ExpiresIn,
		},
	}
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, result *Result) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    result.RefreshToken,
		Path:     "/auth",
		Expires:  result.RefreshExpiry,
		MaxAge:   int(time.Until(result.RefreshExpiry).Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) validate(payload any) (map[string]string, bool) {
	if err := h.validator.Struct(payload); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = "failed on " + fieldErr.Tag()
			}
		} else {
			fields["payload"] = err.Error()
		}
		return fields, false
	}
	return nil, true
}
