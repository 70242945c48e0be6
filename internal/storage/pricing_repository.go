package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"catalog_gateway/internal/models"
)

const pricingColumns = `model_id, price_per_input_token, price_per_output_token, request_price, image_price, source, updated_at`

// PricingRepository handles current pricing and pricing history
type PricingRepository struct {
	db *DB
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// GetCurrentPricing retrieves the current pricing record of a model
func (r *PricingRepository) GetCurrentPricing(ctx context.Context, modelID uuid.UUID) (*models.PricingRecord, error) {
	var rec models.PricingRecord
	query := `SELECT ` + pricingColumns + ` FROM model_pricing WHERE model_id = $1`

	err := r.db.conn.GetContext(ctx, &rec, query, modelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPricingNotFound
		}
		return nil, fmt.Errorf("failed to get pricing: %w", err)
	}

	return &rec, nil
}

// GetCurrentPricingBatch retrieves current pricing for many models at once.
// Models without a record are absent from the result.
func (r *PricingRepository) GetCurrentPricingBatch(ctx context.Context, modelIDs []uuid.UUID) (map[uuid.UUID]models.PricingRecord, error) {
	out := make(map[uuid.UUID]models.PricingRecord, len(modelIDs))
	if len(modelIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(modelIDs))
	for i, id := range modelIDs {
		ids[i] = id.String()
	}

	query := `SELECT ` + pricingColumns + ` FROM model_pricing WHERE model_id = ANY($1::uuid[])`

	var recs []models.PricingRecord
	if err := r.db.conn.SelectContext(ctx, &recs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get pricing batch: %w", err)
	}

	for _, rec := range recs {
		out[rec.ModelID] = rec
	}
	return out, nil
}

// FindFamilyPricing returns the freshest price of the same family from
// another provider
func (r *PricingRepository) FindFamilyPricing(ctx context.Context, familyKey, excludeProvider string) (*models.PricingRecord, error) {
	if familyKey == "" {
		return nil, ErrPricingNotFound
	}

	query := `
		SELECT mp.model_id, mp.price_per_input_token, mp.price_per_output_token,
		       mp.request_price, mp.image_price, mp.source, mp.updated_at
		FROM model_pricing mp
		JOIN models m ON m.id = mp.model_id
		WHERE m.family_key = $1 AND m.provider_slug <> $2 AND m.is_active = TRUE
		ORDER BY mp.updated_at DESC, m.provider_slug
		LIMIT 1
	`

	var rec models.PricingRecord
	err := r.db.conn.GetContext(ctx, &rec, query, familyKey, excludeProvider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPricingNotFound
		}
		return nil, fmt.Errorf("failed to find family pricing: %w", err)
	}

	return &rec, nil
}

// RecordPricingChange upserts the current price and appends a history
// entry in one transaction. Re-recording identical prices is a no-op.
func (r *PricingRepository) RecordPricingChange(ctx context.Context, record models.PricingRecord, changedBy string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev models.PricingRecord
	hasPrev := true
	err = tx.GetContext(ctx, &prev, `SELECT `+pricingColumns+` FROM model_pricing WHERE model_id = $1 FOR UPDATE`, record.ModelID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("failed to load current pricing: %w", err)
		}
		hasPrev = false
	}

	if hasPrev && prev.SamePrices(record) {
		return false, tx.Commit()
	}

	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	if record.Source == "" {
		record.Source = models.PricingSourceDatabase
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO model_pricing (`+pricingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (model_id) DO UPDATE
		SET price_per_input_token = EXCLUDED.price_per_input_token,
		    price_per_output_token = EXCLUDED.price_per_output_token,
		    request_price = EXCLUDED.request_price,
		    image_price = EXCLUDED.image_price,
		    source = EXCLUDED.source,
		    updated_at = EXCLUDED.updated_at
	`,
		record.ModelID, record.PricePerInputToken, record.PricePerOutputToken,
		record.RequestPrice, record.ImagePrice, record.Source, record.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert pricing: %w", err)
	}

	entry := models.PricingHistoryEntry{
		ModelID:        record.ModelID,
		NewInputPrice:  &record.PricePerInputToken,
		NewOutputPrice: &record.PricePerOutputToken,
		ChangedAt:      record.UpdatedAt,
		ChangedBy:      changedBy,
	}
	if hasPrev {
		entry.PreviousInputPrice = &prev.PricePerInputToken
		entry.PreviousOutputPrice = &prev.PricePerOutputToken
	}

	if err := appendHistory(ctx, tx, entry); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit pricing change: %w", err)
	}
	return true, nil
}

// ClearPricing deletes the current price of a model whose upstream pricing
// became unknown and records the transition in the history.
func (r *PricingRepository) ClearPricing(ctx context.Context, modelID uuid.UUID, changedBy string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev models.PricingRecord
	err = tx.GetContext(ctx, &prev, `DELETE FROM model_pricing WHERE model_id = $1 RETURNING `+pricingColumns, modelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, tx.Commit()
		}
		return false, fmt.Errorf("failed to clear pricing: %w", err)
	}

	entry := models.PricingHistoryEntry{
		ModelID:             modelID,
		PreviousInputPrice:  &prev.PricePerInputToken,
		PreviousOutputPrice: &prev.PricePerOutputToken,
		ChangedAt:           time.Now().UTC(),
		ChangedBy:           changedBy,
	}
	if err := appendHistory(ctx, tx, entry); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit pricing clear: %w", err)
	}
	return true, nil
}

func appendHistory(ctx context.Context, tx *sqlx.Tx, entry models.PricingHistoryEntry) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO model_pricing_history (
			model_id, previous_input_price, previous_output_price,
			new_input_price, new_output_price, changed_at, changed_by
		)
		VALUES (
			:model_id, :previous_input_price, :previous_output_price,
			:new_input_price, :new_output_price, :changed_at, :changed_by
		)
	`, entry)
	if err != nil {
		return fmt.Errorf("failed to append pricing history: %w", err)
	}
	return nil
}

// ListPricingHistory returns a model's history, oldest first
func (r *PricingRepository) ListPricingHistory(ctx context.Context, modelID uuid.UUID) ([]models.PricingHistoryEntry, error) {
	query := `
		SELECT id, model_id, previous_input_price, previous_output_price,
		       new_input_price, new_output_price, changed_at, changed_by
		FROM model_pricing_history
		WHERE model_id = $1
		ORDER BY changed_at, id
	`

	var entries []models.PricingHistoryEntry
	if err := r.db.conn.SelectContext(ctx, &entries, query, modelID); err != nil {
		return nil, fmt.Errorf("failed to list pricing history: %w", err)
	}
	return entries, nil
}
