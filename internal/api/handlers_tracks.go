package api

import (
	"net/http"
	"strings"

	"github.com/sydlexius/trackmend/internal/track"
)

// handleListTracks pages through the library.
// GET /api/v1/tracks?limit=&offset=
func (r *Router) handleListTracks(w http.ResponseWriter, req *http.Request) {
	limit := intParam(req, "limit", 100, 1000)
	if limit == 0 {
		limit = 100
	}
	offset := intParam(req, "offset", 0, 0)

	tracks, err := r.engine.Tracks().List(req.Context(), limit, offset)
	if err != nil {
		r.logger.Error("listing tracks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := r.engine.Tracks().Count(req.Context())
	if err != nil {
		r.logger.Error("counting tracks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tracks == nil {
		tracks = []track.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tracks": tracks,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GET /api/v1/tracks/{id}
func (r *Router) handleGetTrack(w http.ResponseWriter, req *http.Request) {
	rec, err := r.engine.Tracks().GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		r.logger.Error("getting track", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleMatch resolves a query against the library.
// POST /api/v1/match
func (r *Router) handleMatch(w http.ResponseWriter, req *http.Request) {
	var q track.Query
	if err := decodeJSON(w, req, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(q.Title) == "" && strings.TrimSpace(q.ISRC) == "" {
		writeError(w, http.StatusBadRequest, "title or isrc is required")
		return
	}

	result, rec, err := r.engine.Match(req.Context(), q)
	if err != nil {
		r.logger.Error("matching track", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "no match")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"match": result,
		"track": rec,
	})
}
