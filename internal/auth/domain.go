package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshTokenRecord is the stored side of a refresh token: one row per
// live session, deleted on redemption or logout.
type RefreshTokenRecord struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is returned by the issuing operations (login, register, refresh).
type Result struct {
	User          *User
	Roles         []string
	Permissions   []string
	AccessToken   string
	RefreshToken  string
	ExpiresIn     int64
	RefreshExpiry time.Time
}
