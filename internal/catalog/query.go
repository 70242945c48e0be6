package catalog

import (
	"fmt"
	"strings"

	"catalog_gateway/internal/family"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/utils"
)

// Query is a catalog request. Gateway is "all" or a provider slug.
type Query struct {
	Gateway  string
	Unique   bool
	Limit    int
	Offset   int
	Search   string
	Modality string
}

// normalize applies defaults and clamps so that equivalent requests share
// one signature.
func (q Query) normalize(cfg Config) Query {
	q.Gateway = strings.ToLower(strings.TrimSpace(q.Gateway))
	if q.Gateway == "" {
		q.Gateway = models.ScopeAll
	}
	if q.Limit <= 0 {
		q.Limit = cfg.DefaultLimit
	}
	if q.Limit > cfg.MaxLimit {
		q.Limit = cfg.MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	q.Modality = strings.ToLower(strings.TrimSpace(q.Modality))
	return q
}

// Signature is a digest of the normalized query.
func (q Query) Signature() string {
	canonical := fmt.Sprintf("gateway=%s|unique=%t|limit=%d|offset=%d|q=%s|modality=%s",
		q.Gateway, q.Unique, q.Limit, q.Offset, q.Search, q.Modality)
	return utils.HashString(canonical)
}

func (q Query) allProviders() bool {
	return q.Gateway == models.ScopeAll
}

// filter selects the models matching the query, deduplicating provider
// scoped results when requested.
func (q Query) filter(items []models.Model, policy family.Policy) []models.Model {
	out := make([]models.Model, 0, len(items))
	for _, m := range items {
		if !q.allProviders() && m.ProviderSlug != q.Gateway {
			continue
		}
		if q.Modality != "" && !strings.Contains(strings.ToLower(m.Modality), q.Modality) {
			continue
		}
		if q.Search != "" &&
			!strings.Contains(strings.ToLower(m.ProviderModelID), q.Search) &&
			!strings.Contains(strings.ToLower(m.DisplayName), q.Search) {
			continue
		}
		out = append(out, m)
	}
	if q.Unique && !q.allProviders() {
		out = family.Dedupe(out, policy)
	}
	return out
}

// page cuts the [offset, offset+limit) window.
func (q Query) page(items []models.Model) []models.Model {
	if q.Offset >= len(items) {
		return nil
	}
	end := q.Offset + q.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[q.Offset:end]
}
