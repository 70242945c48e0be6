package storage

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"catalog_gateway/internal/models"
)

const modelSelect = `
	SELECT
		m.id, m.provider_slug, m.provider_model_id, m.display_name, m.description,
		m.family_id, m.family_key, m.context_length, m.modality,
		m.supports_streaming, m.supports_vision, m.supports_function_calling,
		m.is_active, m.health_status, m.metadata, m.created_at, m.updated_at,
		mp.price_per_input_token, mp.price_per_output_token, mp.request_price, mp.image_price
	FROM models m
	LEFT JOIN model_pricing mp ON mp.model_id = m.id
`

// modelRow is a model joined with its current pricing.
type modelRow struct {
	models.Model
	InputPrice   decimal.NullDecimal `db:"price_per_input_token"`
	OutputPrice  decimal.NullDecimal `db:"price_per_output_token"`
	RequestPrice decimal.NullDecimal `db:"request_price"`
	ImagePrice   decimal.NullDecimal `db:"image_price"`
}

func (row modelRow) toModel() models.Model {
	m := row.Model
	if row.InputPrice.Valid && row.OutputPrice.Valid {
		m.Pricing = models.ModelPricing{
			Known:          true,
			InputPerToken:  row.InputPrice.Decimal,
			OutputPerToken: row.OutputPrice.Decimal,
			RequestPrice:   row.RequestPrice.Decimal,
			ImagePrice:     row.ImagePrice.Decimal,
		}
	}
	return m
}

func rowsToModels(rows []modelRow) []models.Model {
	out := make([]models.Model, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out
}

// ModelRepository handles model database operations
type ModelRepository struct {
	db *DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// ListModelsByProvider returns the active models of one provider
func (r *ModelRepository) ListModelsByProvider(ctx context.Context, providerSlug string) ([]models.Model, error) {
	query := modelSelect + `
		WHERE m.provider_slug = $1 AND m.is_active = TRUE
		ORDER BY m.provider_model_id
	`

	var rows []modelRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, providerSlug); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return rowsToModels(rows), nil
}

// ListActiveModels returns every active model across providers
func (r *ModelRepository) ListActiveModels(ctx context.Context) ([]models.Model, error) {
	query := modelSelect + `
		WHERE m.is_active = TRUE
		ORDER BY m.provider_slug, m.provider_model_id
	`

	var rows []modelRow
	if err := r.db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return rowsToModels(rows), nil
}

// GetModelsByKeys loads specific models of one provider in a single query
func (r *ModelRepository) GetModelsByKeys(ctx context.Context, providerSlug string, providerModelIDs []string) ([]models.Model, error) {
	if len(providerModelIDs) == 0 {
		return nil, nil
	}

	query := modelSelect + `
		WHERE m.provider_slug = $1 AND m.provider_model_id = ANY($2)
		ORDER BY m.provider_model_id
	`

	var rows []modelRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, providerSlug, pq.Array(providerModelIDs)); err != nil {
		return nil, fmt.Errorf("failed to get models: %w", err)
	}

	return rowsToModels(rows), nil
}

// UpsertModels writes models in one transaction keyed by
// (provider_slug, provider_model_id)
func (r *ModelRepository) UpsertModels(ctx context.Context, items []models.Model) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO models (
			provider_slug, provider_model_id, display_name, description,
			family_id, family_key, context_length, modality,
			supports_streaming, supports_vision, supports_function_calling,
			is_active, health_status, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (provider_slug, provider_model_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, description = EXCLUDED.description,
		    family_id = EXCLUDED.family_id, family_key = EXCLUDED.family_key,
		    context_length = EXCLUDED.context_length, modality = EXCLUDED.modality,
		    supports_streaming = EXCLUDED.supports_streaming,
		    supports_vision = EXCLUDED.supports_vision,
		    supports_function_calling = EXCLUDED.supports_function_calling,
		    is_active = EXCLUDED.is_active, health_status = EXCLUDED.health_status,
		    metadata = EXCLUDED.metadata, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range items {
		m := &items[i]
		err := tx.QueryRowxContext(
			ctx, query,
			m.ProviderSlug, m.ProviderModelID, m.DisplayName, m.Description,
			m.FamilyID, m.FamilyKey, m.ContextLength, m.Modality,
			m.SupportsStreaming, m.SupportsVision, m.SupportsFunctionCalling,
			m.IsActive, m.HealthStatus, m.Metadata,
		).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert model %s: %w", m.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit models: %w", err)
	}
	return nil
}

// DeactivateModels soft-deletes the given models of one provider
func (r *ModelRepository) DeactivateModels(ctx context.Context, providerSlug string, providerModelIDs []string) (int, error) {
	if len(providerModelIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE models
		SET is_active = FALSE, updated_at = NOW()
		WHERE provider_slug = $1 AND provider_model_id = ANY($2) AND is_active = TRUE
	`

	result, err := r.db.conn.ExecContext(ctx, query, providerSlug, pq.Array(providerModelIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate models: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
