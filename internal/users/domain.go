package users

import "time"

// User is the management view of an account. The password hash never
// leaves the repository layer except for the change-password check.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
