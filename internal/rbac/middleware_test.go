package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

func guarded(roles ...string) http.Handler {
	m := Middleware{}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := shared.ActorFromContext(r.Context())
		_, _ = w.Write([]byte(actor.ID + ":" + actor.Role))
	})
	return m.Identify(m.RequireAny(roles...)(ok))
}

func TestRequireAnyRejectsAnonymous(t *testing.T) {
	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAnyDefaultsRoleToViewer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, "u-1")
	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u-1:viewer", rec.Body.String())
}

func TestRequireAnyChecksRole(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{role: "Staff", want: http.StatusOK},
		{role: "admin", want: http.StatusOK},
		{role: "viewer", want: http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(HeaderActorID, "u-2")
		req.Header.Set(HeaderActorRole, tc.role)
		rec := httptest.NewRecorder()
		guarded(shared.RoleStaff, shared.RoleAdmin).ServeHTTP(rec, req)
		require.Equal(t, tc.want, rec.Code, tc.role)
	}
}
