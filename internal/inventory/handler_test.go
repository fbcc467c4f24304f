package inventory

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/rbac"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, _ := newTestService(t, ServiceConfig{})
	guard := rbac.Middleware{}
	h := NewHandler(nil, svc, guard, shared.NewIdempotencyStore(client, time.Hour))

	r := chi.NewRouter()
	r.Use(guard.Identify)
	h.MountRoutes(r)
	return r, svc
}

func doJSON(t *testing.T, h http.Handler, method, path, role string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(rbac.HeaderActorID, "u-"+role)
		req.Header.Set(rbac.HeaderActorName, role+" user")
		req.Header.Set(rbac.HeaderActorRole, role)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAdjustAndHistory(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/inventory", shared.RoleStaff, map[string]any{
		"name": "Widget", "quantity": 3, "reorderThreshold": 5, "price": "9.99",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, router, http.MethodPost, "/inventory/"+created.ID+"/adjust", shared.RoleAdmin, map[string]any{"delta": -1000}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var adjusted Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adjusted))
	require.Equal(t, int64(0), adjusted.Quantity)

	rec = doJSON(t, router, http.MethodGet, "/inventory/history/"+created.ID, shared.RoleViewer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []LedgerEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, KindRemoved, entries[0].Kind)
	require.Equal(t, int64(3), entries[0].QuantityDelta)
	require.Equal(t, "admin user", entries[0].ActorName)

	rec = doJSON(t, router, http.MethodGet, "/inventory/history?limit=1", shared.RoleViewer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
}

func TestHandlerRoleGuards(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/inventory", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/inventory", shared.RoleViewer, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/inventory", shared.RoleViewer, map[string]any{"name": "x", "quantity": 1}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerErrorMapping(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/inventory/does-not-exist", shared.RoleViewer, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/inventory", shared.RoleStaff, map[string]any{"name": "x", "quantity": -2}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/inventory/abc/adjust", shared.RoleStaff, map[string]any{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/inventory/history?since=yesterday", shared.RoleViewer, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerIdempotencyKey(t *testing.T) {
	router, svc := newTestRouter(t)
	headers := map[string]string{IdempotencyKeyHeader: "req-1"}
	body := map[string]any{"name": "Bolt", "quantity": 2}

	rec := doJSON(t, router, http.MethodPost, "/inventory", shared.RoleStaff, body, headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/inventory", shared.RoleStaff, body, headers)
	require.Equal(t, http.StatusConflict, rec.Code)

	items, err := svc.List(t.Context())
	require.NoError(t, err)
	require.Len(t, items, 1)

	failing := map[string]string{IdempotencyKeyHeader: "req-2"}
	rec = doJSON(t, router, http.MethodDelete, "/inventory/missing", shared.RoleStaff, nil, failing)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, router, http.MethodDelete, "/inventory/missing", shared.RoleStaff, nil, failing)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/inventory/"+items[0].ID, shared.RoleStaff, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
