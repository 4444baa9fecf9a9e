package handlers

import (
	"net/http"
)

// handleGeneratePlan serves POST /api/plans/{eventID}/generate. The
// trigger is idempotent: re-posting starts a fresh job that supersedes
// any in-flight one.
func (h *Handlers) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIntParam(r, "eventID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	job, err := h.generator.StartGeneration(r.Context(), eventID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondAccepted(w, map[string]string{
		"job_id": job.ID,
		"status": job.Status.String(),
	})
}

// handlePlanStatus serves GET /api/plans/{eventID}/status
func (h *Handlers) handlePlanStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIntParam(r, "eventID")
	if err != nil {
		h.respondError(w, err)
		return
	}

	status, err := h.generator.Status(r.Context(), eventID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondOK(w, map[string]string{"status": status.String()})
}
