package api

import (
	"errors"
	"net/http"

	"github.com/sydlexius/trackmend/internal/job"
)

// handleDuplicates reports duplicate groups in the current library.
// GET /api/v1/duplicates
func (r *Router) handleDuplicates(w http.ResponseWriter, req *http.Request) {
	report, err := r.engine.Duplicates(req.Context())
	if err != nil {
		r.logger.Error("detecting duplicates", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleRemoveDuplicates previews removal, or starts the dedupe job when
// execute is true.
// POST /api/v1/duplicates/remove
func (r *Router) handleRemoveDuplicates(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Execute bool `json:"execute"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !body.Execute {
		_, plan, err := r.engine.PlanRemoval(req.Context())
		if err != nil {
			r.logger.Error("planning duplicate removal", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, plan)
		return
	}

	id, err := r.engine.StartDedupe(req.Context())
	r.writeStarted(w, job.KindDedupe, id, err)
}

// writeStarted answers a job trigger: 202 with the job id, or 409 when a job
// of that kind is already running.
func (r *Router) writeStarted(w http.ResponseWriter, kind job.Kind, id string, err error) {
	if errors.Is(err, job.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, string(kind)+" already running")
		return
	}
	if err != nil {
		r.logger.Error("starting job", "kind", string(kind), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"kind":   string(kind),
		"state":  string(job.StateRunning),
	})
}
