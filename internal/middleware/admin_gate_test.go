package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_gateway/internal/auth"
	"catalog_gateway/internal/config"
)

func TestAdminGate_RequireAdmin(t *testing.T) {
	cfg := &config.Config{JWTSecret: []byte("test-secret")}

	token := func(roles ...auth.Role) string {
		tok, _, err := auth.GenerateAdminJWT("7", roles, auth.AuthTypeUser, time.Minute, cfg)
		require.NoError(t, err)
		return tok
	}

	var seenID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = GetAdminID(r.Context())
		claims, ok := GetAdminClaims(r.Context())
		if assert.True(t, ok) {
			assert.Contains(t, claims.Roles, string(auth.RoleAdmin))
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewAdminGate(cfg, nil).Require(auth.RoleAdmin)(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"malformed token", "Bearer nope", http.StatusUnauthorized},
		{"viewer forbidden", "Bearer " + token(auth.RoleViewer), http.StatusForbidden},
		{"admin allowed", "Bearer " + token(auth.RoleAdmin), http.StatusNoContent},
		{"lowercase scheme", "bearer " + token(auth.RoleAdmin), http.StatusNoContent},
		{"bare token accepted", token(auth.RoleAdmin), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenID = ""
			req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "7", seenID)
			}
		})
	}
}

func TestAdminGate_ViewerRoute(t *testing.T) {
	cfg := &config.Config{JWTSecret: []byte("test-secret")}
	handler := NewAdminGate(cfg, nil).Require(auth.RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, role := range []auth.Role{auth.RoleViewer, auth.RoleAdmin} {
		tok, _, err := auth.GenerateAdminJWT("1", []auth.Role{role}, "", time.Minute, cfg)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/admin/sync/active", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, role)
	}
}

func TestGetAdminID_NoClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := GetAdminID(req.Context())
	assert.False(t, ok)
}
