package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"catalog_gateway/internal/middleware"
	"catalog_gateway/internal/models"
	"catalog_gateway/internal/storage"
	"catalog_gateway/internal/syncjob"
	"catalog_gateway/internal/utils"
)

// TriggerSyncRequest is the body of POST /admin/sync. An empty body syncs
// every provider.
type TriggerSyncRequest struct {
	Scope string `json:"scope"`
}

// TriggerSyncResponse acknowledges a queued (or coalesced) sync job
type TriggerSyncResponse struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
	Scope  string           `json:"scope"`
}

// ActiveSyncsResponse lists the queued and running jobs
type ActiveSyncsResponse struct {
	Jobs  []syncjob.JobView `json:"jobs"`
	Count int               `json:"count"`
}

// handleTriggerSync handles POST /admin/sync
func (d *Dependencies) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var req TriggerSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	adminID, _ := middleware.GetAdminID(r.Context())
	job, err := d.Sync.Trigger(r.Context(), req.Scope, adminID)
	if err != nil {
		if errors.Is(err, syncjob.ErrUnknownScope) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		d.logger.Error("Failed to trigger sync", "scope", req.Scope, "admin_id", adminID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to queue sync job")
		return
	}

	utils.RespondWithJSON(w, http.StatusAccepted, TriggerSyncResponse{
		JobID:  job.ID.String(),
		Status: job.Status,
		Scope:  job.Scope,
	})
}

// handleSyncStatus handles GET /admin/sync/{id}
func (d *Dependencies) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	view, err := d.Sync.Poll(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Sync job not found")
			return
		}
		d.logger.Error("Failed to load sync job", "job_id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load sync job")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

// handleActiveSyncs handles GET /admin/sync/active
func (d *Dependencies) handleActiveSyncs(w http.ResponseWriter, r *http.Request) {
	jobs, err := d.Sync.ListActive(r.Context())
	if err != nil {
		d.logger.Error("Failed to list active sync jobs", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list sync jobs")
		return
	}
	if jobs == nil {
		jobs = []syncjob.JobView{}
	}
	utils.RespondWithJSON(w, http.StatusOK, ActiveSyncsResponse{Jobs: jobs, Count: len(jobs)})
}
