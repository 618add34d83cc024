package handlers

import (
	"net/http"

	"signage-server/logging"
	"signage-server/services"
)

// HealthHandler reports whether the server can read its playlist table
type HealthHandler struct {
	playlistService *services.PlaylistService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(playlistService *services.PlaylistService) *HealthHandler {
	return &HealthHandler{playlistService: playlistService}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.playlistService.Ready(); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
