package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingSource records which lookup tier produced a price.
type PricingSource string

const (
	PricingSourceDatabase       PricingSource = "database"
	PricingSourceManual         PricingSource = "manual"
	PricingSourceCrossReference PricingSource = "cross-reference"
)

//
// PricingRecord (model_pricing table)
//

// PricingRecord is the single current price of a model. Prices are always
// stored per single token.
type PricingRecord struct {
	ModelID             uuid.UUID       `db:"model_id" json:"model_id"`
	PricePerInputToken  decimal.Decimal `db:"price_per_input_token" json:"price_per_input_token"`
	PricePerOutputToken decimal.Decimal `db:"price_per_output_token" json:"price_per_output_token"`
	RequestPrice        decimal.Decimal `db:"request_price" json:"request_price"`
	ImagePrice          decimal.Decimal `db:"image_price" json:"image_price"`
	Source              PricingSource   `db:"source" json:"source"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// SamePrices reports whether two records carry identical prices.
func (r PricingRecord) SamePrices(o PricingRecord) bool {
	return r.PricePerInputToken.Equal(o.PricePerInputToken) &&
		r.PricePerOutputToken.Equal(o.PricePerOutputToken) &&
		r.RequestPrice.Equal(o.RequestPrice) &&
		r.ImagePrice.Equal(o.ImagePrice)
}

// PricingRecordFromModel converts adapter pricing into a database record.
func PricingRecordFromModel(m *Model, now time.Time) PricingRecord {
	return PricingRecord{
		ModelID:             m.ID,
		PricePerInputToken:  m.Pricing.InputPerToken,
		PricePerOutputToken: m.Pricing.OutputPerToken,
		RequestPrice:        m.Pricing.RequestPrice,
		ImagePrice:          m.Pricing.ImagePrice,
		Source:              PricingSourceDatabase,
		UpdatedAt:           now,
	}
}

//
// PricingHistoryEntry (model_pricing_history table, append-only)
//

type PricingHistoryEntry struct {
	ID                  int64            `db:"id" json:"id"`
	ModelID             uuid.UUID        `db:"model_id" json:"model_id"`
	PreviousInputPrice  *decimal.Decimal `db:"previous_input_price" json:"previous_input_price,omitempty"`
	PreviousOutputPrice *decimal.Decimal `db:"previous_output_price" json:"previous_output_price,omitempty"`
	// New prices are nil when the model's pricing became unknown.
	NewInputPrice  *decimal.Decimal `db:"new_input_price" json:"new_input_price"`
	NewOutputPrice *decimal.Decimal `db:"new_output_price" json:"new_output_price"`
	ChangedAt      time.Time        `db:"changed_at" json:"changed_at"`
	ChangedBy      string           `db:"changed_by" json:"changed_by"`
}
