// Package client is the Go SDK for the Meridian auth API. It mirrors the
// server's authorization state so callers can gate UI and routes without a
// network round trip per check. The mirror is advisory: the server-side
// guard remains the enforcement point.
package client

import "sync"

// State describes the session lifecycle.
type State int

const (
	// StateAnonymous means no authenticated user.
	StateAnonymous State = iota
	// StateLoading means a bootstrap or refresh is in flight and the
	// authorization state is not yet known.
	StateLoading
	// StateAuthenticated means a user is signed in and the permission
	// snapshot is populated.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// UserInfo is the signed-in user as known to the mirror.
type UserInfo struct {
	ID    int64
	Email string
	Name  string
}

// Session holds the client-side authorization mirror. All predicates read
// one immutable snapshot under the lock, so a concurrent refresh never
// produces a torn view.
type Session struct {
	mu          sync.RWMutex
	state       State
	user        UserInfo
	roles       []string
	permissions map[string]struct{}
	superAdmin  bool
}

// NewSession returns an anonymous session.
func NewSession() *Session {
	return &Session{state: StateAnonymous}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns the signed-in user. The zero value means anonymous.
func (s *Session) User() UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Roles returns the role names of the signed-in user.
func (s *Session) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.roles))
	copy(out, s.roles)
	return out
}

// Permissions returns the effective permission snapshot.
func (s *Session) Permissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.permissions))
	for p := range s.permissions {
		out = append(out, p)
	}
	return out
}

// Can reports whether the user holds every listed permission (AND). It is
// false while anonymous or loading; an empty list is always allowed for an
// authenticated user. SUPER_ADMIN passes any check.
func (s *Session) Can(perms ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated {
		return false
	}
	if s.superAdmin {
		return true
	}
	for _, p := range perms {
		if _, ok := s.permissions[p]; !ok {
			return false
		}
	}
	return true
}

// CanAny reports whether the user holds at least one listed permission (OR).
func (s *Session) CanAny(perms ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated {
		return false
	}
	if s.superAdmin {
		return true
	}
	for _, p := range perms {
		if _, ok := s.permissions[p]; ok {
			return true
		}
	}
	return false
}

const superAdminRole = "SUPER_ADMIN"

func (s *Session) beginLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoading
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) setAuthenticated(user UserInfo, roles, permissions []string) {
	permSet := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		permSet[p] = struct{}{}
	}
	super := false
	for _, r := range roles {
		if r == superAdminRole {
			super = true
			break
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.user = user
	s.roles = roles
	s.permissions = permSet
	s.superAdmin = super
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAnonymous
	s.user = UserInfo{}
	s.roles = nil
	s.permissions = nil
	s.superAdmin = false
}
