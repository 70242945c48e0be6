package middleware

import (
	"context"
	"net/http"
	"strings"

	"catalog_gateway/internal/auth"
	"catalog_gateway/internal/config"
	"catalog_gateway/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

// AdminClaimsKey holds the validated *auth.AdminClaims of the caller.
const AdminClaimsKey ContextKey = "adminClaims"

// AdminGate guards the sync control endpoints with admin JWTs.
type AdminGate struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewAdminGate creates a gate validating tokens signed with cfg.JWTSecret.
func NewAdminGate(cfg *config.Config, logger *utils.Logger) *AdminGate {
	if logger == nil {
		logger = utils.NewLogger("admin-gate")
	}
	return &AdminGate{cfg: cfg, logger: logger}
}

// Require returns middleware admitting callers holding any one of roles.
// Admin satisfies viewer.
func (g *AdminGate) Require(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			claims, err := auth.ValidateAdminJWT(token, g.cfg)
			if err != nil {
				g.logger.Debug("Admin token rejected", "path", r.URL.Path, "error", err)
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			if !auth.Permits(claims.Roles, roles...) {
				g.logger.Debug("Admin lacks role", "path", r.URL.Path, "admin_id", claims.AdminID, "roles", claims.Roles)
				utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), AdminClaimsKey, claims)))
		})
	}
}

// bearerToken accepts both "Bearer <jwt>" and a bare token.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		h = h[7:]
	}
	return strings.TrimSpace(h)
}

// GetAdminClaims retrieves the admin claims from the request context
func GetAdminClaims(ctx context.Context) (*auth.AdminClaims, bool) {
	claims, ok := ctx.Value(AdminClaimsKey).(*auth.AdminClaims)
	return claims, ok
}

// GetAdminID retrieves the admin ID from the request context
func GetAdminID(ctx context.Context) (string, bool) {
	claims, ok := GetAdminClaims(ctx)
	if !ok {
		return "", false
	}
	return claims.AdminID, true
}
