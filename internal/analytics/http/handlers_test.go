package analytichttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/analytics"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/rbac"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := inventory.NewMemoryStore()
	svc := inventory.NewService(inventory.ServiceDeps{Items: store, Ledger: store}, inventory.ServiceConfig{})
	actor := shared.Actor{ID: "seed", Name: "Seeder", Role: shared.RoleAdmin}
	ctx := context.Background()

	for _, in := range []struct {
		name string
		qty  int64
		min  int64
	}{{"Bolt", 5, 10}, {"Nut", 0, 0}, {"Glue", 40, 5}} {
		q := in.qty
		_, err := svc.Create(ctx, inventory.ItemInput{Name: in.name, Quantity: &q, ReorderThreshold: in.min}, actor)
		require.NoError(t, err)
	}

	guard := rbac.Middleware{}
	h := NewHandler(nil, analytics.NewService(store, store, nil, nil), guard)
	r := chi.NewRouter()
	r.Use(guard.Identify)
	h.MountRoutes(r)
	return r
}

func get(t *testing.T, h http.Handler, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		req.Header.Set(rbac.HeaderActorID, "u-"+role)
		req.Header.Set(rbac.HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSummaryEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := get(t, router, "/analytics/summary", shared.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary analytics.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 3, summary.TotalItems)
	require.Equal(t, int64(45), summary.TotalQuantity)
	require.Len(t, summary.LowStockItems, 2)
	require.Equal(t, int64(45), summary.Categories[analytics.UncategorizedBucket])
}

func TestAnalyticsRequiresAdmin(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusUnauthorized, get(t, router, "/analytics", "").Code)
	require.Equal(t, http.StatusForbidden, get(t, router, "/analytics", shared.RoleStaff).Code)
}

func TestActivityAndDailyEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := get(t, router, "/analytics/activity", shared.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var counts map[inventory.Kind]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	require.Equal(t, 3, counts[inventory.KindCreated])
	require.Contains(t, counts, inventory.KindDeleted)

	tomorrow := time.Now().UTC().Add(24 * time.Hour).Format(time.DateOnly)
	rec = get(t, router, "/analytics/daily?since="+tomorrow, shared.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = get(t, router, "/analytics/daily?since=not-a-date", shared.RoleAdmin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := get(t, router, "/analytics", shared.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var overview analytics.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	require.Equal(t, 3, overview.Summary.TotalItems)
	require.Len(t, overview.Recent, 3)
	require.Empty(t, overview.Daily)
}
