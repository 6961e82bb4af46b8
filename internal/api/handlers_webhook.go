package api

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/sydlexius/trackmend/internal/job"
	"github.com/sydlexius/trackmend/internal/webhook"
)

// handleLidarrWebhook rescans the library when Lidarr reports changed files.
// The token is accepted from the X-Api-Key header or the token query param.
// POST /api/v1/webhooks/lidarr
func (r *Router) handleLidarrWebhook(w http.ResponseWriter, req *http.Request) {
	token := req.Header.Get("X-Api-Key")
	if token == "" {
		token = req.URL.Query().Get("token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(r.lidarr)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var payload webhook.LidarrPayload
	if err := decodeLenientJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.EventType == "" {
		writeError(w, http.StatusBadRequest, "eventType is required")
		return
	}

	if !payload.TriggersScan() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": payload.EventType})
		return
	}

	artist := ""
	if payload.Artist != nil {
		artist = payload.Artist.Name
	}
	r.logger.Info("lidarr event received", "event", payload.EventType, "artist", artist, "files", len(payload.TrackFiles))

	id, err := r.engine.StartScan(req.Context())
	if errors.Is(err, job.ErrAlreadyRunning) {
		// The running scan picks the new files up.
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan already running"})
		return
	}
	r.writeStarted(w, job.KindScan, id, err)
}
