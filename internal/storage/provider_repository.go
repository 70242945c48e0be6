package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"catalog_gateway/internal/models"
)

const providerColumns = `id, slug, name, site_url, logo_url, adapter_type, config, enabled, created_at, updated_at`

// ProviderRepository handles provider database operations
type ProviderRepository struct {
	db *DB
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetProviderBySlug retrieves a provider by slug
func (r *ProviderRepository) GetProviderBySlug(ctx context.Context, slug string) (*models.Provider, error) {
	var provider models.Provider
	query := `SELECT ` + providerColumns + ` FROM providers WHERE slug = $1`

	err := r.db.conn.GetContext(ctx, &provider, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &provider, nil
}

// ListEnabledProviders returns enabled providers ordered by slug
func (r *ProviderRepository) ListEnabledProviders(ctx context.Context) ([]models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE enabled = TRUE ORDER BY slug`

	var providers []models.Provider
	if err := r.db.conn.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	return providers, nil
}

// UpsertProvider creates or updates a provider keyed by slug
func (r *ProviderRepository) UpsertProvider(ctx context.Context, provider *models.Provider) error {
	query := `
		INSERT INTO providers (id, slug, name, site_url, logo_url, adapter_type, config, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, site_url = EXCLUDED.site_url, logo_url = EXCLUDED.logo_url,
		    adapter_type = EXCLUDED.adapter_type, config = EXCLUDED.config,
		    enabled = EXCLUDED.enabled, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		provider.ID, provider.Slug, provider.Name, provider.SiteURL, provider.LogoURL,
		provider.AdapterType, provider.Config, provider.Enabled,
	).Scan(&provider.ID, &provider.CreatedAt, &provider.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert provider: %w", err)
	}

	return nil
}
