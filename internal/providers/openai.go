package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"catalog_gateway/internal/models"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter lists models from an OpenAI-compatible /models endpoint.
// The endpoint carries no pricing, so prices come from the other tiers.
type OpenAIAdapter struct {
	slug    string
	auth    Authenticator
	client  *http.Client
	baseURL string
}

// NewOpenAIAdapter creates a new OpenAI-compatible adapter
func NewOpenAIAdapter(config ProviderConfig) (Adapter, error) {
	if config.Slug == "" {
		return nil, fmt.Errorf("slug is required for OpenAI adapter")
	}

	return &OpenAIAdapter{
		slug:    config.Slug,
		auth:    NewSimpleAPIKeyAuth(config.APIKey, "Authorization", "Bearer "),
		client:  newHTTPClient(),
		baseURL: strings.TrimRight(config.stringOption("base_url", openAIDefaultBaseURL), "/"),
	}, nil
}

func (a *OpenAIAdapter) Slug() string {
	return a.slug
}

func (a *OpenAIAdapter) FetchCatalog(ctx context.Context) ([]RawModel, error) {
	return fetchList(ctx, a.client, a.auth, a.baseURL+"/models")
}

func (a *OpenAIAdapter) Normalize(raw RawModel) (models.Model, error) {
	id := raw.str("id")
	if id == "" {
		return models.Model{}, fmt.Errorf("model entry without id")
	}

	m := models.Model{
		ProviderSlug:      a.slug,
		ProviderModelID:   id,
		DisplayName:       id,
		Modality:          openAIModality(id),
		SupportsStreaming: true,
		IsActive:          true,
		HealthStatus:      models.HealthHealthy,
	}
	if owner := raw.str("owned_by"); owner != "" {
		m.Metadata = models.JSONB{"owned_by": owner}
	}
	m.SupportsVision = strings.Contains(id, "gpt-4o") || strings.Contains(id, "vision")
	m.SupportsFunctionCalling = strings.HasPrefix(id, "gpt-")
	return m, nil
}

// openAIModality guesses the modality from well-known id prefixes; the
// endpoint does not report it.
func openAIModality(id string) string {
	switch {
	case strings.HasPrefix(id, "text-embedding"):
		return "text->embedding"
	case strings.HasPrefix(id, "dall-e"), strings.HasPrefix(id, "gpt-image"):
		return "text->image"
	case strings.HasPrefix(id, "whisper"):
		return "audio->text"
	case strings.HasPrefix(id, "tts"):
		return "text->audio"
	default:
		return "text->text"
	}
}
