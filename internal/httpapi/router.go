package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"catalog_gateway/internal/auth"
	"catalog_gateway/internal/catalog"
	"catalog_gateway/internal/config"
	"catalog_gateway/internal/middleware"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/syncjob"
	"catalog_gateway/internal/utils"
)

// CatalogService answers catalog queries.
type CatalogService interface {
	Query(ctx context.Context, q catalog.Query) (*models.CatalogResponse, error)
}

// SyncService runs background syncs on behalf of admins.
type SyncService interface {
	Trigger(ctx context.Context, scope, adminID string) (*models.SyncJob, error)
	Poll(ctx context.Context, jobID uuid.UUID) (*syncjob.JobView, error)
	ListActive(ctx context.Context) ([]syncjob.JobView, error)
}

// HealthCheck probes one dependency. Critical checks turn /health into a
// 503 when they fail; the others only mark the service degraded.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Catalog   CatalogService
	Sync      SyncService
	Providers catalog.ProviderSource
	Health    []HealthCheck
	Metrics   http.Handler

	logger *utils.Logger
}

// NewRouter registers every route on a fresh mux.
func NewRouter(cfg *config.Config, deps *Dependencies) http.Handler {
	deps.logger = utils.NewLogger("http")

	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /v1/models", deps.handleModels)
	mux.HandleFunc("GET /health", deps.handleHealth)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	// Admin endpoints: triggering needs admin, reading needs viewer
	gate := middleware.NewAdminGate(cfg, deps.logger)
	adminOnly := gate.Require(auth.RoleAdmin)
	viewer := gate.Require(auth.RoleViewer)
	mux.Handle("POST /admin/sync", adminOnly(http.HandlerFunc(deps.handleTriggerSync)))
	mux.Handle("GET /admin/sync/active", viewer(http.HandlerFunc(deps.handleActiveSyncs)))
	mux.Handle("GET /admin/sync/{id}", viewer(http.HandlerFunc(deps.handleSyncStatus)))

	return middleware.RequestLogging(deps.logger)(mux)
}
