package rbac

import "time"

// Role represents a named capability bundle.
type Role struct {
	ID          int64
	Name        string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability as a (resource, action) pair.
type Permission struct {
	ID          int64
	Resource    string
	Action      string
	Description string
}

// Name returns the serialized permission string, e.g. "users.create".
func (p Permission) Name() string {
	return p.Resource + "." + p.Action
}
