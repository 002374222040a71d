package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-hq/meridian/internal/shared"
)

// AccessClaims is the signed snapshot embedded in access tokens. Role and
// permission edits do not change an already-issued token; they become
// visible at the next login or refresh.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Identity converts the claims into the request identity snapshot.
func (c *AccessClaims) Identity() (*shared.Identity, error) {
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", shared.ErrUnauthorized)
	}
	return &shared.Identity{
		UserID:      userID,
		Email:       c.Email,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}, nil
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the two token kinds. Access tokens carry
// the resolved permission snapshot; refresh tokens carry only subject and
// record id, signed with a separate secret.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
	}
}

// AccessTTL exposes the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// SignAccess mints a signed access token for the user.
func (tm *TokenManager) SignAccess(user *User, roles, permissions []string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTTL)),
		},
		Email:       user.Email,
		Roles:       roles,
		Permissions: permissions,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.accessSecret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseAccess validates an access token and returns its claims. The check is
// pure signature/expiry verification; it never touches storage.
func (tm *TokenManager) ParseAccess(raw string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(_ *jwt.Token) (any, error) {
		return tm.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, shared.ErrUnauthorized
	}
	return claims, nil
}

// SignRefresh mints the refresh token for a stored record.
func (tm *TokenManager) SignRefresh(userID int64, tokenID string, expiresAt time.Time) (string, error) {
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, nil
}

// ParseRefresh verifies a refresh token and extracts the subject and record
// id. Storage-level rotation happens separately in Service.Refresh.
func (tm *TokenManager) ParseRefresh(raw string) (userID int64, tokenID string, err error) {
	token, err := jwt.ParseWithClaims(raw, &refreshClaims{}, func(_ *jwt.Token) (any, error) {
		return tm.refreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", shared.ErrRefreshTokenInvalid, err)
	}
	claims, ok := token.Claims.(*refreshClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return 0, "", shared.ErrRefreshTokenInvalid
	}
	userID, err = strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", shared.ErrRefreshTokenInvalid
	}
	return userID, claims.ID, nil
}
