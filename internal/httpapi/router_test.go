package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_gateway/internal/auth"
	"catalog_gateway/internal/catalog"
	"catalog_gateway/internal/config"
	"catalog_gateway/internal/metrics"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/providers"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/syncjob"
)

type fakeCatalog struct {
	last catalog.Query
	err  error
}

func (f *fakeCatalog) Query(ctx context.Context, q catalog.Query) (*models.CatalogResponse, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	return &models.CatalogResponse{
		Data:    []models.EnrichedModel{{ID: "m1", Name: "Model One"}},
		Total:   1,
		Gateway: "all",
		ProviderStatus: map[string]models.ProviderStatus{
			"alpha": {Provider: "alpha", State: models.ProviderStateOK},
		},
	}, nil
}

type fakeSync struct {
	jobs      map[uuid.UUID]*models.SyncJob
	triggered []string
}

func newFakeSync() *fakeSync {
	return &fakeSync{jobs: make(map[uuid.UUID]*models.SyncJob)}
}

func (f *fakeSync) Trigger(ctx context.Context, scope, adminID string) (*models.SyncJob, error) {
	if scope == "" {
		scope = models.ScopeAll
	}
	if scope == "broken" {
		return nil, errors.New("queue down")
	}
	if scope != models.ScopeAll && scope != "alpha" {
		return nil, syncjob.ErrUnknownScope
	}
	f.triggered = append(f.triggered, scope+"|"+adminID)
	job := &models.SyncJob{ID: uuid.New(), Scope: scope, Status: models.JobStatusQueued, TriggeredBy: "admin:" + adminID}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeSync) Poll(ctx context.Context, id uuid.UUID) (*syncjob.JobView, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, storage.ErrJobNotFound
	}
	return &syncjob.JobView{SyncJob: *job, DurationSeconds: 1.5}, nil
}

func (f *fakeSync) ListActive(ctx context.Context) ([]syncjob.JobView, error) {
	var out []syncjob.JobView
	for _, j := range f.jobs {
		out = append(out, syncjob.JobView{SyncJob: *j})
	}
	return out, nil
}

type stubAdapter struct{ slug string }

func (a stubAdapter) Slug() string { return a.slug }
func (a stubAdapter) FetchCatalog(context.Context) ([]providers.RawModel, error) {
	return nil, nil
}
func (a stubAdapter) Normalize(providers.RawModel) (models.Model, error) {
	return models.Model{}, nil
}

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	catalog *fakeCatalog
	sync    *fakeSync
}

func newTestServer(t *testing.T, checks ...HealthCheck) *testServer {
	t.Helper()
	cfg := &config.Config{JWTSecret: []byte("test-secret")}
	registry := providers.NewRegistry(storage.NewMemoryStore())
	registry.Register(models.Provider{Slug: "alpha", Name: "Alpha"}, stubAdapter{slug: "alpha"})

	ts := &testServer{cfg: cfg, catalog: &fakeCatalog{}, sync: newFakeSync()}
	ts.handler = NewRouter(cfg, &Dependencies{
		Catalog:   ts.catalog,
		Sync:      ts.sync,
		Providers: registry,
		Health:    checks,
		Metrics:   metrics.New().Handler(),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if role != "" {
		tok, _, err := auth.GenerateAdminJWT("9", []auth.Role{role}, auth.AuthTypeUser, time.Minute, ts.cfg)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func TestModels_ParsesQuery(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/models?gateway=Alpha&unique=true&limit=10&offset=5&q=gpt&modality=text", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, catalog.Query{Gateway: "alpha", Unique: true, Limit: 10, Offset: 5, Search: "gpt", Modality: "text"}, ts.catalog.last)

	var resp models.CatalogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "m1", resp.Data[0].ID)
	assert.Equal(t, models.ProviderStateOK, resp.ProviderStatus["alpha"].State)
}

func TestModels_Errors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/models?gateway=nope", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.catalog.err = errors.New("everything is down")
	w = ts.do(t, http.MethodGet, "/v1/models", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/models", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTriggerSync(t *testing.T) {
	ts := newTestServer(t)

	t.Run("requires token", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/admin/sync", `{"scope":"alpha"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("viewer forbidden", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/admin/sync", `{"scope":"alpha"}`, auth.RoleViewer)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin queues", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/admin/sync", `{"scope":"alpha"}`, auth.RoleAdmin)
		require.Equal(t, http.StatusAccepted, w.Code)

		var resp TriggerSyncResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.JobStatusQueued, resp.Status)
		assert.Equal(t, "alpha", resp.Scope)
		_, err := uuid.Parse(resp.JobID)
		assert.NoError(t, err)
		assert.Contains(t, ts.sync.triggered, "alpha|9")
	})

	t.Run("empty body means all", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/admin/sync", "", auth.RoleAdmin)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, ts.sync.triggered, "all|9")
	})

	t.Run("bad payload", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/admin/sync", `{"scope":`, auth.RoleAdmin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown scope", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/admin/sync", `{"scope":"nope"}`, auth.RoleAdmin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("dispatch failure", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/admin/sync", `{"scope":"broken"}`, auth.RoleAdmin)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestSyncStatus(t *testing.T) {
	ts := newTestServer(t)
	job, err := ts.sync.Trigger(context.Background(), "alpha", "1")
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/admin/sync/"+job.ID.String(), "", auth.RoleViewer)
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, job.ID.String(), view["job_id"])
	assert.Equal(t, "queued", view["status"])
	assert.Equal(t, 1.5, view["duration_seconds"])

	w = ts.do(t, http.MethodGet, "/admin/sync/"+uuid.NewString(), "", auth.RoleViewer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/admin/sync/not-a-uuid", "", auth.RoleViewer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/admin/sync/active", "", auth.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	var active ActiveSyncsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	assert.Equal(t, 1, active.Count)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []HealthCheck
		code   int
		status string
	}{
		{"all up", []HealthCheck{{Name: "origin", Critical: true, Check: ok}, {Name: "cache", Check: ok}}, http.StatusOK, "ok"},
		{"cache down", []HealthCheck{{Name: "origin", Critical: true, Check: ok}, {Name: "cache", Check: down}}, http.StatusOK, "degraded"},
		{"origin down", []HealthCheck{{Name: "origin", Critical: true, Check: down}, {Name: "cache", Check: ok}}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.checks...)
			w := ts.do(t, http.MethodGet, "/health", "", "")
			assert.Equal(t, tt.code, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Checks, 2)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
