package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog_gateway/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDRESS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.False(t, cfg.UseRedis())
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 5*time.Minute, cfg.Catalog.L1TTL)
	assert.Equal(t, 30*time.Minute, cfg.Catalog.L2TTL)
	assert.Equal(t, "display_name", cfg.Catalog.FamilyPolicy)
	assert.Contains(t, cfg.Catalog.CriticalFields, "pricing")
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, time.Hour, cfg.Sync.Interval)

	cat := cfg.CatalogSettings()
	assert.Equal(t, 50, cat.DefaultLimit)
	assert.Equal(t, 500, cat.MaxLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_ADDRESS", "localhost:6380")
	t.Setenv("CATALOG_L1_TTL", "1m")
	t.Setenv("CATALOG_CRITICAL_FIELDS", "pricing, context_length")
	t.Setenv("CATALOG_FAMILY_POLICY", "curated")
	t.Setenv("SYNC_WORKERS", "4")
	t.Setenv("SYNC_SCHEDULE", "*/15 * * * *")
	t.Setenv("FETCH_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.UseRedis())
	assert.Equal(t, time.Minute, cfg.Catalog.L1TTL)
	assert.Equal(t, []string{"pricing", "context_length"}, cfg.Catalog.CriticalFields)
	assert.Equal(t, "curated", cfg.Catalog.FamilyPolicy)
	assert.Equal(t, 4, cfg.SyncSettings().Workers)
	assert.Equal(t, "*/15 * * * *", cfg.SyncSettings().Schedule)
	// unparsable values fall back to the default
	assert.Equal(t, 8, cfg.Fetch.Workers)
}

func TestLoad_FamilyMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
families:
  openai/gpt-4o: gpt-4o
  azure/gpt-4o-eastus: gpt-4o
`), 0o600))

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CATALOG_FAMILY_POLICY", "curated")
	t.Setenv("CATALOG_FAMILY_MAP", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Catalog.FamilyMapPath)
	assert.Len(t, cfg.Catalog.FamilyMap, 2)

	policy, err := cfg.FamilyPolicy()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", policy.Key(models.Model{ProviderSlug: "azure", ProviderModelID: "gpt-4o-eastus"}))
	assert.Equal(t, "gpt-4o", policy.Key(models.Model{ProviderSlug: "openai", ProviderModelID: "gpt-4o"}))
}

func TestLoad_FamilyMapErrors(t *testing.T) {
	dir := t.TempDir()
	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("families:\n  no-slash: x\n"), 0o600))
	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("families:\n  openai/gpt-4o: gpt-4o\n"), 0o600))

	tests := []struct {
		name   string
		policy string
		path   string
	}{
		{"missing file", "curated", filepath.Join(dir, "missing.yaml")},
		{"malformed key", "curated", malformed},
		{"map without curated policy", "display_name", valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			t.Setenv("CATALOG_FAMILY_POLICY", tt.policy)
			t.Setenv("CATALOG_FAMILY_MAP", tt.path)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"unknown critical field", map[string]string{"CATALOG_CRITICAL_FIELDS": "pricing,colour"}},
		{"unknown family policy", map[string]string{"CATALOG_FAMILY_POLICY": "vibes"}},
		{"refresh threshold above l2 ttl", map[string]string{"CATALOG_REFRESH_THRESHOLD": "1h"}},
		{"max limit below default", map[string]string{"CATALOG_MAX_LIMIT": "10"}},
		{"job timeout below fetch deadline", map[string]string{"SYNC_JOB_TIMEOUT": "30s"}},
		{"bad cron schedule", map[string]string{"SYNC_SCHEDULE": "every tuesday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CATALOG_TEST_VALUE=from-file\n"), 0o600))

	t.Setenv("CATALOG_TEST_VALUE", "")
	os.Unsetenv("CATALOG_TEST_VALUE")
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("CATALOG_TEST_VALUE"))

	// a missing file is not an error
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
