package httpapi

import (
	"context"
	"net/http"
	"time"

	"catalog_gateway/internal/utils"
)

const healthTimeout = 2 * time.Second

// HealthResponse reports the status of every probed dependency
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles GET /health
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(d.Health))}
	code := http.StatusOK
	for _, hc := range d.Health {
		if err := hc.Check(ctx); err != nil {
			resp.Checks[hc.Name] = err.Error()
			if hc.Critical {
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
			} else if resp.Status == "ok" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Checks[hc.Name] = "ok"
	}
	utils.RespondWithJSON(w, code, resp)
}
