package api

import (
	"net/http"

	"github.com/sydlexius/trackmend/internal/backup"
)

// GET /api/v1/database
func (r *Router) handleDatabaseStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.maint.Status(req.Context())
	if err != nil {
		r.logger.Error("reading database status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/v1/database/optimize
func (r *Router) handleDatabaseOptimize(w http.ResponseWriter, req *http.Request) {
	if err := r.maint.Optimize(req.Context()); err != nil {
		r.logger.Error("optimizing database", "error", err)
		writeError(w, http.StatusInternalServerError, "optimize failed")
		return
	}
	r.handleDatabaseStatus(w, req)
}

// GET /api/v1/database/backups
func (r *Router) handleListBackups(w http.ResponseWriter, req *http.Request) {
	snapshots, err := r.backup.List()
	if err != nil {
		r.logger.Error("listing snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if snapshots == nil {
		snapshots = []backup.Info{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// POST /api/v1/database/backups
func (r *Router) handleCreateBackup(w http.ResponseWriter, req *http.Request) {
	info, err := r.backup.Snapshot(req.Context(), "manual")
	if err != nil {
		r.logger.Error("writing snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	if _, err := r.backup.Prune(); err != nil {
		r.logger.Warn("pruning snapshots", "error", err)
	}
	writeJSON(w, http.StatusCreated, info)
}
