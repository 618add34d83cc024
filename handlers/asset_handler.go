package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"signage-server/logging"
	"signage-server/models"
	"signage-server/services"
	"signage-server/utils"
)

// multipartOverhead is the slack allowed on top of the file size limit for
// multipart boundaries and headers
const multipartOverhead = 1 << 20

// uploadField is the multipart form field carrying the file
const uploadField = "file"

// AssetHandler handles uploads, deletions and serving of video files
type AssetHandler struct {
	playlistService *services.PlaylistService
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(playlistService *services.PlaylistService) *AssetHandler {
	return &AssetHandler{playlistService: playlistService}
}

// Upload handles POST /api/upload. The file part is streamed straight to
// the asset store.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	assets := h.playlistService.Assets()
	r.Body = http.MaxBytesReader(w, r.Body, assets.MaxBytes()+multipartOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: missing file", services.ErrValidation))
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, r, fmt.Errorf("%w: limit is %d bytes", services.ErrPayloadTooLarge, assets.MaxBytes()))
				return
			}
			writeError(w, r, fmt.Errorf("%w: malformed multipart body", services.ErrValidation))
			return
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			part.Close()
			continue
		}

		asset, err := h.playlistService.UploadAsset(r.Context(), part, part.FileName(), part.Header.Get("Content-Type"))
		part.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, models.UploadResponse{OK: true, File: asset})
		return
	}

	writeError(w, r, fmt.Errorf("%w: missing file", services.ErrValidation))
}

// DeleteFile handles DELETE /api/admin/file/{filename}
func (h *AssetHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	if err := h.playlistService.DeleteAsset(r.Context(), filename); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

// ServeAsset handles GET /uploads/{filename}. Range requests are answered
// by http.ServeContent so screens can seek.
func (h *AssetHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if filename != utils.StripName(filename) || filename == "" || strings.HasPrefix(filename, ".") {
		http.NotFound(w, r)
		return
	}

	file, err := os.Open(filepath.Join(h.playlistService.Assets().Dir(), filename))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger := logging.FromContext(r.Context())
			logger.Error().Err(err).Str("filename", filename).Msg("opening asset failed")
		}
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if strings.EqualFold(filepath.Ext(filename), ".mp4") {
		w.Header().Set("Content-Type", "video/mp4")
	}
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}
