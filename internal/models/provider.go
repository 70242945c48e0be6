package models

import (
	"time"

	"github.com/google/uuid"
)

// AdapterType enumerates supported catalog adapter variants.
type AdapterType string

const (
	AdapterTypeOpenAI     AdapterType = "openai"
	AdapterTypeOpenRouter AdapterType = "openrouter"
	AdapterTypeStatic     AdapterType = "static"
)

// Provider represents an upstream model catalog source
type Provider struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Slug        string    `db:"slug" json:"slug"`
	Name        string    `db:"name" json:"name"`
	SiteURL     string    `db:"site_url" json:"site_url,omitempty"`
	LogoURL     string    `db:"logo_url" json:"logo_url,omitempty"`
	AdapterType string    `db:"adapter_type" json:"adapter_type"`
	Config      JSONB     `db:"config" json:"config,omitempty"`
	Enabled     bool      `db:"enabled" json:"enabled"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
