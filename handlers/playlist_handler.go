package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"signage-server/models"
	"signage-server/services"
)

// maxPlaylistBody bounds the size of a playlist replace request
const maxPlaylistBody = 1 << 20

// PlaylistHandler handles playlist requests from screens and admins
type PlaylistHandler struct {
	playlistService *services.PlaylistService
}

// NewPlaylistHandler creates a new playlist handler
func NewPlaylistHandler(playlistService *services.PlaylistService) *PlaylistHandler {
	return &PlaylistHandler{playlistService: playlistService}
}

// GetPlaylist handles GET /api/playlist/{screenId}
func (h *PlaylistHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	screenID := mux.Vars(r)["screenId"]

	resp, err := h.playlistService.GetPlaylist(r.Context(), screenID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, r, http.StatusOK, resp)
}

// GetTable handles GET /api/admin/playlist
func (h *PlaylistHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.playlistService.GetTable(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, table)
}

// ReplacePlaylist handles PUT /api/admin/playlist/{screenId}
func (h *PlaylistHandler) ReplacePlaylist(w http.ResponseWriter, r *http.Request) {
	screenID := mux.Vars(r)["screenId"]

	var request models.PlaylistUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPlaylistBody)).Decode(&request); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid JSON body", services.ErrValidation))
		return
	}

	count, err := h.playlistService.ReplacePlaylist(r.Context(), screenID, request.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, models.PlaylistUpdateResponse{
		OK:       true,
		ScreenID: screenID,
		Count:    count,
	})
}
