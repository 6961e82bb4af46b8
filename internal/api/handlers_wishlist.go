package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sydlexius/trackmend/internal/track"
	"github.com/sydlexius/trackmend/internal/wishlist"
)

// handleListWishlist lists wishlist items, optionally filtered by status.
// GET /api/v1/wishlist?status=pending&status=downloading
func (r *Router) handleListWishlist(w http.ResponseWriter, req *http.Request) {
	var statuses []wishlist.Status
	for _, raw := range req.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			s, err := wishlist.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			statuses = append(statuses, s)
		}
	}

	items, err := r.engine.Wishlist().List(req.Context(), statuses...)
	if err != nil {
		r.logger.Error("listing wishlist", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []wishlist.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleCreateWishlistItem adds a wanted recording.
// POST /api/v1/wishlist
func (r *Router) handleCreateWishlistItem(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Artist string `json:"artist"`
		Title  string `json:"title"`
		Album  string `json:"album"`
		ISRC   string `json:"isrc"`
		Status string `json:"status"`
		Source string `json:"source"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Title) == "" && track.NormalizeISRC(body.ISRC) == "" {
		writeError(w, http.StatusBadRequest, "title or a valid isrc is required")
		return
	}

	item := &wishlist.Item{
		Artist: strings.TrimSpace(body.Artist),
		Title:  strings.TrimSpace(body.Title),
		Album:  strings.TrimSpace(body.Album),
		ISRC:   body.ISRC,
		Source: body.Source,
	}
	if body.Status != "" {
		status, err := wishlist.ParseStatus(body.Status)
		if err != nil || !status.Open() {
			writeError(w, http.StatusBadRequest, "status must be pending or downloading")
			return
		}
		item.Status = status
	}

	if err := r.engine.Wishlist().Create(req.Context(), item); err != nil {
		r.logger.Error("creating wishlist item", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// GET /api/v1/wishlist/{id}
func (r *Router) handleGetWishlistItem(w http.ResponseWriter, req *http.Request) {
	item, err := r.engine.Wishlist().Get(req.Context(), req.PathValue("id"))
	if err != nil {
		r.logger.Error("getting wishlist item", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "wishlist item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleSetWishlistStatus moves an open item between pending and downloading.
// PUT /api/v1/wishlist/{id}/status
func (r *Router) handleSetWishlistStatus(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := wishlist.ParseStatus(body.Status)
	if err != nil || !status.Open() {
		writeError(w, http.StatusBadRequest, "status must be pending or downloading")
		return
	}

	id := req.PathValue("id")
	existing, err := r.engine.Wishlist().Get(req.Context(), id)
	if err != nil {
		r.logger.Error("getting wishlist item", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "wishlist item not found")
		return
	}

	if err := r.engine.Wishlist().SetStatus(req.Context(), id, status); err != nil {
		if errors.Is(err, wishlist.ErrCompleted) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		r.logger.Error("updating wishlist status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

// DELETE /api/v1/wishlist/{id}
func (r *Router) handleDeleteWishlistItem(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	existing, err := r.engine.Wishlist().Get(req.Context(), id)
	if err != nil {
		r.logger.Error("getting wishlist item", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "wishlist item not found")
		return
	}
	if err := r.engine.Wishlist().Delete(req.Context(), id); err != nil {
		r.logger.Error("deleting wishlist item", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
