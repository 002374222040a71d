package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
	_ "github.com/meridian-hq/meridian/testing"
)

func performGuarded(t *testing.T, mw func(http.Handler) http.Handler, identity *shared.Identity) int {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if identity != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), identity))
	}
	res := httptest.NewRecorder()
	mw(next).ServeHTTP(res, req)
	return res.Code
}

func TestGuardEmptyRequirementAllows(t *testing.T) {
	guard := rbac.Guard{}
	if code := performGuarded(t, guard.Require(), nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
}

func TestGuardRejectsAnonymousCaller(t *testing.T) {
	guard := rbac.Guard{}
	if code := performGuarded(t, guard.Require("users.view"), nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestGuardSuperAdminBypassesEveryCheck(t *testing.T) {
	guard := rbac.Guard{}
	identity := &shared.Identity{
		UserID: 1,
		Roles:  []string{shared.RoleSuperAdmin},
	}
	mw := guard.Require("users.delete", "finance.close", "not.even.a.real.permission")
	if code := performGuarded(t, mw, identity); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
}

func TestGuardRequireAllSemantics(t *testing.T) {
	guard := rbac.Guard{}
	identity := &shared.Identity{
		UserID:      2,
		Roles:       []string{"editor"},
		Permissions: []string{"users.view", "users.edit"},
	}

	if code := performGuarded(t, guard.Require("users.view", "users.edit"), identity); code != http.StatusNoContent {
		t.Fatalf("expected 204 when all permissions held, got %d", code)
	}
	if code := performGuarded(t, guard.Require("users.view", "users.delete"), identity); code != http.StatusForbidden {
		t.Fatalf("expected 403 when one permission missing, got %d", code)
	}
}

func TestGuardRequireAnySemantics(t *testing.T) {
	guard := rbac.Guard{}
	identity := &shared.Identity{
		UserID:      3,
		Roles:       []string{"viewer"},
		Permissions: []string{"dashboard.view"},
	}

	if code := performGuarded(t, guard.RequireAny("users.view", "dashboard.view"), identity); code != http.StatusNoContent {
		t.Fatalf("expected 204 when any permission held, got %d", code)
	}
	if code := performGuarded(t, guard.RequireAny("users.view", "roles.view"), identity); code != http.StatusForbidden {
		t.Fatalf("expected 403 when no permission held, got %d", code)
	}
}
