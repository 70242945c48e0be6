package httpapi

import (
	"net/http"
	"strings"

	"catalog_gateway/internal/catalog"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/utils"
)

// handleModels serves GET /v1/models.
//
// Query parameters: gateway (all or a provider slug), unique, limit,
// offset, q (search) and modality.
func (d *Dependencies) handleModels(w http.ResponseWriter, r *http.Request) {
	q := catalog.Query{
		Gateway:  strings.ToLower(strings.TrimSpace(r.URL.Query().Get("gateway"))),
		Unique:   utils.QueryBool(r, "unique"),
		Limit:    utils.QueryInt(r, "limit", 0),
		Offset:   utils.QueryInt(r, "offset", 0),
		Search:   r.URL.Query().Get("q"),
		Modality: r.URL.Query().Get("modality"),
	}

	if q.Gateway != "" && q.Gateway != models.ScopeAll && d.Providers != nil {
		if _, ok := d.Providers.Provider(q.Gateway); !ok {
			utils.RespondWithError(w, http.StatusBadRequest, "Unknown gateway: "+q.Gateway)
			return
		}
	}

	resp, err := d.Catalog.Query(r.Context(), q)
	if err != nil {
		d.logger.Error("Catalog query failed", "gateway", q.Gateway, "error", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Catalog unavailable")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
