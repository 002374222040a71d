package roles

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

	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
)

func newRolesRouter(t *testing.T) (http.Handler, *stubRepo) {
	t.Helper()
	svc, repo := newRolesFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, rbac.Guard{Logger: logger})
	r := chi.NewRouter()
	r.Route("/roles", handler.MountRoutes)
	return r, repo
}

func doAs(t *testing.T, router http.Handler, identity *shared.Identity, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	if identity != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), identity))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestListRequiresRolesView(t *testing.T) {
	router, repo := newRolesRouter(t)
	repo.add(Role{Name: "EDITOR"})

	rr := doAs(t, router, nil, http.MethodGet, "/roles/", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	viewer := &shared.Identity{UserID: 9, Permissions: []string{shared.PermRolesView}}
	rr = doAs(t, router, viewer, http.MethodGet, "/roles/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"EDITOR"`)
}

func TestCreateRequiresRolesEdit(t *testing.T) {
	router, _ := newRolesRouter(t)

	viewer := &shared.Identity{UserID: 9, Permissions: []string{shared.PermRolesView}}
	rr := doAs(t, router, viewer, http.MethodPost, "/roles/", map[string]any{"name": "EDITOR"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	editor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermRolesEdit}}
	rr = doAs(t, router, editor, http.MethodPost, "/roles/", map[string]any{"name": "EDITOR"})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestCreateDuplicateNameIs409(t *testing.T) {
	router, repo := newRolesRouter(t)
	repo.add(Role{Name: "EDITOR"})

	editor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermRolesEdit}}
	rr := doAs(t, router, editor, http.MethodPost, "/roles/", map[string]any{"name": "EDITOR"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestDeleteSystemRoleIs400(t *testing.T) {
	router, repo := newRolesRouter(t)
	repo.add(Role{ID: 1, Name: shared.RoleSuperAdmin, IsSystem: true})

	editor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermRolesEdit}}
	rr := doAs(t, router, editor, http.MethodDelete, "/roles/1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReplacePermissionsEndpoint(t *testing.T) {
	router, repo := newRolesRouter(t)
	repo.add(Role{ID: 1, Name: "EDITOR"})

	editor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermRolesEdit}}
	rr := doAs(t, router, editor, http.MethodPut, "/roles/1/permissions", map[string]any{"permissionIds": []int64{2, 3}})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Permissions []permissionPayload `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Permissions, 2)
}
