package api

import (
	"errors"
	"net/http"

	"github.com/sydlexius/trackmend/internal/event"
	"github.com/sydlexius/trackmend/internal/job"
)

// POST /api/v1/scan
func (r *Router) handleScan(w http.ResponseWriter, req *http.Request) {
	id, err := r.engine.StartScan(req.Context())
	r.writeStarted(w, job.KindScan, id, err)
}

// POST /api/v1/reconcile
func (r *Router) handleReconcile(w http.ResponseWriter, req *http.Request) {
	id, err := r.engine.StartReconcile(req.Context())
	r.writeStarted(w, job.KindReconcile, id, err)
}

// handleListJobs returns the status of every job kind.
// GET /api/v1/jobs
func (r *Router) handleListJobs(w http.ResponseWriter, req *http.Request) {
	out := make([]job.Snapshot, 0, len(job.Kinds))
	for _, k := range job.Kinds {
		out = append(out, r.engine.Jobs().Status(k))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleJobStatus returns the current status and recent history of a kind.
// GET /api/v1/jobs/{kind}?history=
func (r *Router) handleJobStatus(w http.ResponseWriter, req *http.Request) {
	kind, err := job.ParseKind(req.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	history, err := r.engine.Jobs().History(req.Context(), kind, intParam(req, "history", 10, 100))
	if err != nil {
		r.logger.Error("loading job history", "kind", string(kind), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if history == nil {
		history = []job.Snapshot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  r.engine.Jobs().Status(kind),
		"history": history,
	})
}

// handleCancelJob requests cancellation of the running job of a kind.
// DELETE /api/v1/jobs/{kind}
func (r *Router) handleCancelJob(w http.ResponseWriter, req *http.Request) {
	kind, err := job.ParseKind(req.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := r.engine.Jobs().Cancel(kind); err != nil {
		if errors.Is(err, job.ErrNotRunning) {
			writeError(w, http.StatusConflict, string(kind)+" not running")
			return
		}
		r.logger.Error("cancelling job", "kind", string(kind), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleRecentEvents returns the newest bus events.
// GET /api/v1/events?limit=
func (r *Router) handleRecentEvents(w http.ResponseWriter, req *http.Request) {
	events := []event.Event{}
	if r.eventBus != nil {
		events = r.eventBus.Recent(intParam(req, "limit", 20, 50))
	}
	writeJSON(w, http.StatusOK, events)
}
