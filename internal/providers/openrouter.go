package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"catalog_gateway/internal/models"
	"catalog_gateway/internal/pricing"
)

const openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterAdapter reads the OpenRouter catalog, which reports per-token
// prices as decimal strings and uses "-1" for variable pricing.
type OpenRouterAdapter struct {
	slug    string
	auth    Authenticator
	client  *http.Client
	baseURL string
}

// NewOpenRouterAdapter creates a new OpenRouter adapter
func NewOpenRouterAdapter(config ProviderConfig) (Adapter, error) {
	if config.Slug == "" {
		return nil, fmt.Errorf("slug is required for OpenRouter adapter")
	}

	return &OpenRouterAdapter{
		slug:    config.Slug,
		auth:    NewSimpleAPIKeyAuth(config.APIKey, "Authorization", "Bearer "),
		client:  newHTTPClient(),
		baseURL: strings.TrimRight(config.stringOption("base_url", openRouterDefaultBaseURL), "/"),
	}, nil
}

func (a *OpenRouterAdapter) Slug() string {
	return a.slug
}

func (a *OpenRouterAdapter) FetchCatalog(ctx context.Context) ([]RawModel, error) {
	return fetchList(ctx, a.client, a.auth, a.baseURL+"/models")
}

func (a *OpenRouterAdapter) Normalize(raw RawModel) (models.Model, error) {
	id := raw.str("id")
	if id == "" {
		return models.Model{}, fmt.Errorf("model entry without id")
	}

	name := raw.str("name")
	if name == "" {
		name = id
	}

	arch := raw.obj("architecture")
	inputs := arch.strings("input_modalities")
	params := raw.strings("supported_parameters")

	m := models.Model{
		ProviderSlug:            a.slug,
		ProviderModelID:         id,
		DisplayName:             name,
		Description:             raw.str("description"),
		ContextLength:           raw.num("context_length"),
		Modality:                arch.str("modality"),
		SupportsStreaming:       true,
		SupportsVision:          contains(inputs, "image"),
		SupportsFunctionCalling: contains(params, "tools"),
		IsActive:                true,
		HealthStatus:            models.HealthHealthy,
	}
	if m.Modality == "" {
		m.Modality = "text->text"
	}
	if slug := raw.str("canonical_slug"); slug != "" {
		m.Metadata = models.JSONB{"canonical_slug": slug}
	}

	p, err := parseOpenRouterPricing(raw.obj("pricing"))
	if err != nil {
		return models.Model{}, fmt.Errorf("model %s: %w", id, err)
	}
	m.Pricing = p
	return m, nil
}

// parseOpenRouterPricing converts the pricing object. Missing or variable
// prompt/completion prices leave the pricing unknown rather than zero.
func parseOpenRouterPricing(obj RawModel) (models.ModelPricing, error) {
	if obj == nil {
		return models.ModelPricing{}, nil
	}

	input, err := pricing.ParsePrice(obj["prompt"], pricing.PerToken)
	if errors.Is(err, pricing.ErrDynamicPricing) {
		return models.ModelPricing{}, nil
	} else if err != nil {
		return models.ModelPricing{}, err
	}
	output, err := pricing.ParsePrice(obj["completion"], pricing.PerToken)
	if errors.Is(err, pricing.ErrDynamicPricing) {
		return models.ModelPricing{}, nil
	} else if err != nil {
		return models.ModelPricing{}, err
	}

	p := models.ModelPricing{Known: true, InputPerToken: input, OutputPerToken: output}
	// Flat per-request and per-image fees are optional.
	if v, err := pricing.ParsePrice(obj["request"], pricing.PerToken); err == nil {
		p.RequestPrice = v
	}
	if v, err := pricing.ParsePrice(obj["image"], pricing.PerToken); err == nil {
		p.ImagePrice = v
	}
	return p, nil
}
