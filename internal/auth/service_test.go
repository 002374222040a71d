package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hq/meridian/internal/shared"
)

type stubRepo struct {
	byEmail map[string]*User
	byID    map[int64]*User
	nextID  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{byEmail: make(map[string]*User), byID: make(map[int64]*User), nextID: 1}
}

func (r *stubRepo) add(user User) *User {
	u := user
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	}
	r.byEmail[u.Email] = &u
	r.byID[u.ID] = &u
	return &u
}

func (r *stubRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) FindByID(_ context.Context, id int64) (*User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubRepo) Create(_ context.Context, email, name, passwordHash string) (*User, error) {
	if _, ok := r.byEmail[email]; ok {
		return nil, shared.ErrEmailTaken
	}
	return r.add(User{Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}), nil
}

type memoryStore struct {
	records map[string]RefreshTokenRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]RefreshTokenRecord)}
}

func (s *memoryStore) Create(_ context.Context, rec RefreshTokenRecord) error {
	s.records[rec.ID] = rec
	return nil
}

func (s *memoryStore) Find(_ context.Context, id string) (*RefreshTokenRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, shared.ErrRefreshTokenInvalid
	}
	return &rec, nil
}

func (s *memoryStore) Consume(_ context.Context, id string) (*RefreshTokenRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, shared.ErrRefreshTokenInvalid
	}
	delete(s.records, id)
	return &rec, nil
}

func (s *memoryStore) DeleteAllForUser(_ context.Context, userID int64) error {
	for id, rec := range s.records {
		if rec.UserID == userID {
			delete(s.records, id)
		}
	}
	return nil
}

type stubResolver struct {
	roles       []string
	permissions []string
	assigned    map[int64][]string
}

func newStubResolver(roles, permissions []string) *stubResolver {
	return &stubResolver{roles: roles, permissions: permissions, assigned: make(map[int64][]string)}
}

func (r *stubResolver) ResolveForUser(_ context.Context, _ int64) ([]string, []string, error) {
	return r.roles, r.permissions, nil
}

func (r *stubResolver) AssignRoleByName(_ context.Context, userID int64, name string) error {
	r.assigned[userID] = append(r.assigned[userID], name)
	return nil
}

type authFixture struct {
	repo     *stubRepo
	store    *memoryStore
	resolver *stubResolver
	tokens   *TokenManager
	service  *Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	repo := newStubRepo()
	store := newMemoryStore()
	resolver := newStubResolver([]string{"USER"}, []string{"dashboard.view", "users.view"})
	tokens := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute)
	svc := NewService(ServiceConfig{
		Repo:        repo,
		Store:       store,
		Tokens:      tokens,
		Resolver:    resolver,
		Roles:       resolver,
		RefreshTTL:  7 * 24 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
		BcryptCost:  bcrypt.MinCost,
	})
	return &authFixture{repo: repo, store: store, resolver: resolver, tokens: tokens, service: svc}
}

func (f *authFixture) seedUser(t *testing.T, email, password string, active bool) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return f.repo.add(User{Email: email, Name: "Seeded", PasswordHash: string(hash), IsActive: active})
}

func TestLoginEmbedsResolvedPermissions(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	result, err := f.service.Login(context.Background(), "admin@example.com", "hunter22", false)
	require.NoError(t, err)

	claims, err := f.tokens.ParseAccess(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"USER"}, claims.Roles)
	assert.Equal(t, []string{"dashboard.view", "users.view"}, claims.Permissions)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestLoginFoldsEmailCase(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	_, err := f.service.Login(context.Background(), "Admin@Example.COM", "hunter22", false)
	assert.NoError(t, err)
}

func TestLoginFailureIsUniform(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)

	_, unknownErr := f.service.Login(context.Background(), "nobody@example.com", "hunter22", false)
	_, wrongErr := f.service.Login(context.Background(), "admin@example.com", "wrong-password", false)

	assert.ErrorIs(t, unknownErr, shared.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, shared.ErrInvalidCredentials)
}

func TestLoginInactiveOnlyAfterPasswordVerifies(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "dormant@example.com", "hunter22", false)

	_, err := f.service.Login(context.Background(), "dormant@example.com", "wrong-password", false)
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = f.service.Login(context.Background(), "dormant@example.com", "hunter22", false)
	assert.ErrorIs(t, err, shared.ErrAccountInactive)
}

func TestLoginRememberMeExtendsRefreshExpiry(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "admin@example.com", "hunter22", true)
	ctx := context.Background()

	short, err := f.service.Login(ctx, "admin@example.com", "hunter22", false)
	require.NoError(t, err)
	long, err := f.service.Login(ctx, "admin@example.com", "hunter22", true)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), short.RefreshExpiry, time.Minute)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), long.RefreshExpiry, time.Minute)
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.Register(context.Background(), "new@example.com", "New User", "hunter22", "hunter23")
	assert.ErrorIs(t, err, shared.ErrPasswordMismatch)
}

func TestRegisterAssignsDefaultRole(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.service.Register(context.Background(), "New@Example.com", "New User", "hunter22", "hunter22")
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", result.User.Email)
	assert.Equal(t, []string{shared.RoleDefault}, f.resolver.assigned[result.User.ID])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "taken@example.com", "hunter22", true)

	_, err := f.service.Register(context.Background(), "taken@example.com", "Someone", "hunter22", "hunter22")
	assert.ErrorIs(t, err, shared.ErrEmailTaken)
}

func TestRefreshRotatesAndReResolves(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "admin@example.com", "hunter22", true)
	ctx := context.Background()

	login, err := f.service.Login(ctx, "admin@example.com", "hunter22", false)
	require.NoError(t, err)
	_, tokenID, err := f.tokens.ParseRefresh(login.RefreshToken)
	require.NoError(t, err)

	// Role edits after login surface on the next rotation.
	f.resolver.permissions = []string{"dashboard.view", "users.view", "roles.edit"}

	refreshed, err := f.service.Refresh(ctx, user.ID, tokenID)
	require.NoError(t, err)

	claims, err := f.tokens.ParseAccess(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Contains(t, claims.Permissions, "roles.edit")

	_, err = f.service.Refresh(ctx, user.ID, tokenID)
	assert.ErrorIs(t, err, shared.ErrRefreshTokenInvalid, "redeemed token must not work twice")
}

func TestRefreshRejectsMismatchedUser(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "admin@example.com", "hunter22", true)
	ctx := context.Background()

	login, err := f.service.Login(ctx, "admin@example.com", "hunter22", false)
	require.NoError(t, err)
	_, tokenID, err := f.tokens.ParseRefresh(login.RefreshToken)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, user.ID+1, tokenID)
	assert.ErrorIs(t, err, shared.ErrRefreshTokenInvalid)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "admin@example.com", "hunter22", true)
	ctx := context.Background()

	login, err := f.service.Login(ctx, "admin@example.com", "hunter22", false)
	require.NoError(t, err)
	_, tokenID, err := f.tokens.ParseRefresh(login.RefreshToken)
	require.NoError(t, err)

	user.IsActive = false

	_, err = f.service.Refresh(ctx, user.ID, tokenID)
	assert.ErrorIs(t, err, shared.ErrAccountInactive)
}

func TestLogoutSingleSessionLeavesOthers(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "admin@example.com", "hunter22", true)
	ctx := context.Background()

	first, err := f.service.Login(ctx, "admin@example.com", "hunter22", false)
	require.NoError(t, err)
	second, err := f.service.Login(ctx, "admin@example.com", "hunter22", false)
	require.NoError(t, err)

	_, firstID, err := f.tokens.ParseRefresh(first.RefreshToken)
	require.NoError(t, err)
	_, secondID, err := f.tokens.ParseRefresh(second.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, user.ID, firstID))

	_, err = f.store.Find(ctx, firstID)
	assert.ErrorIs(t, err, shared.ErrRefreshTokenInvalid)
	_, err = f.store.Find(ctx, secondID)
	assert.NoError(t, err, "the other session survives a single logout")
}

func TestLogoutAllSessions(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "admin@example.com", "hunter22", true)
	ctx := context.Background()

	var tokenIDs []string
	for i := 0; i < 3; i++ {
		result, err := f.service.Login(ctx, "admin@example.com", "hunter22", false)
		require.NoError(t, err)
		_, id, err := f.tokens.ParseRefresh(result.RefreshToken)
		require.NoError(t, err)
		tokenIDs = append(tokenIDs, id)
	}

	require.NoError(t, f.service.Logout(ctx, user.ID, ""))

	for _, id := range tokenIDs {
		_, err := f.store.Find(ctx, id)
		assert.ErrorIs(t, err, shared.ErrRefreshTokenInvalid)
	}
}
