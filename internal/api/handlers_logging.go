package api

import (
	"net/http"

	"github.com/sydlexius/trackmend/internal/logging"
)

// GET /api/v1/logging
func (r *Router) handleGetLogging(w http.ResponseWriter, req *http.Request) {
	if r.logManager == nil {
		writeError(w, http.StatusServiceUnavailable, "logging manager not available")
		return
	}
	writeJSON(w, http.StatusOK, r.logManager.Config())
}

// handleUpdateLogging applies a partial logging config at runtime. Omitted
// fields keep their current values.
// PUT /api/v1/logging
func (r *Router) handleUpdateLogging(w http.ResponseWriter, req *http.Request) {
	if r.logManager == nil {
		writeError(w, http.StatusServiceUnavailable, "logging manager not available")
		return
	}

	var cfg logging.Config
	if err := decodeJSON(w, req, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Merge with current config: only overwrite fields that are provided
	current := r.logManager.Config()
	if cfg.Level == "" {
		cfg.Level = current.Level
	}
	if cfg.Format == "" {
		cfg.Format = current.Format
	}
	if cfg.Console == "" {
		cfg.Console = current.Console
	}
	if cfg.FilePath != "" && cfg.FilePath != current.FilePath {
		writeError(w, http.StatusBadRequest, "file_path cannot be changed at runtime")
		return
	}
	cfg.FilePath = current.FilePath
	if cfg.FileMaxSizeMB == 0 {
		cfg.FileMaxSizeMB = current.FileMaxSizeMB
	}
	if cfg.FileMaxFiles == 0 {
		cfg.FileMaxFiles = current.FileMaxFiles
	}
	if cfg.FileMaxAgeDays == 0 {
		cfg.FileMaxAgeDays = current.FileMaxAgeDays
	}

	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.logManager.Reconfigure(cfg)
	if r.settings != nil {
		if err := r.settings.SaveLogging(req.Context(), cfg); err != nil {
			r.logger.Warn("persisting logging config", "error", err)
		}
	}
	r.logger.Info("logging reconfigured", "config", cfg.String())
	writeJSON(w, http.StatusOK, r.logManager.Config())
}
