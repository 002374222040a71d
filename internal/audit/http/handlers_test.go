package audithttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/audit"
	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
)

type stubService struct {
	lastFilters audit.TimelineFilters
}

func (s *stubService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return audit.Result{
		Rows:   []audit.TimelineRow{{At: filters.To, ActorID: 7, Action: "auth.login", Entity: "user", EntityID: "7"}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}, nil
}

func (s *stubService) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return []audit.TimelineRow{{At: filters.To, ActorID: 7, Action: "auth.login", Entity: "user", EntityID: "7"}}, nil
}

func newAuditRouter(t *testing.T) (http.Handler, *stubService) {
	t.Helper()
	svc := &stubService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc)
	handler.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Route("/audit", func(gr chi.Router) {
		handler.MountRoutes(gr, rbac.Guard{Logger: logger})
	})
	return r, svc
}

func getAs(t *testing.T, router http.Handler, identity *shared.Identity, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if identity != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), identity))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestTimelineRequiresAuditView(t *testing.T) {
	router, _ := newAuditRouter(t)

	rr := getAs(t, router, nil, "/audit/")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	viewer := &shared.Identity{UserID: 9, Permissions: []string{shared.PermDashboardView}}
	rr = getAs(t, router, viewer, "/audit/")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	auditor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermAuditView}}
	rr = getAs(t, router, auditor, "/audit/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "auth.login")
}

func TestTimelineDefaultsToSevenDayWindow(t *testing.T) {
	router, svc := newAuditRouter(t)
	auditor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermAuditView}}

	rr := getAs(t, router, auditor, "/audit/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 7*24*time.Hour, svc.lastFilters.To.Sub(svc.lastFilters.From))
}

func TestTimelineRejectsBadTimestamp(t *testing.T) {
	router, _ := newAuditRouter(t)
	auditor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermAuditView}}

	rr := getAs(t, router, auditor, "/audit/?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTimelineClampsOversizedRange(t *testing.T) {
	router, svc := newAuditRouter(t)
	auditor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermAuditView}}

	rr := getAs(t, router, auditor, "/audit/?from=2020-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 90*24*time.Hour, svc.lastFilters.To.Sub(svc.lastFilters.From))
}

func TestExportWritesCSV(t *testing.T) {
	router, _ := newAuditRouter(t)
	auditor := &shared.Identity{UserID: 9, Permissions: []string{shared.PermAuditView}}

	rr := getAs(t, router, auditor, "/audit/export.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "occurred_at,actor_id,action")
}
