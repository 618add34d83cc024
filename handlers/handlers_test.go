package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-server/config"
	"signage-server/models"
	"signage-server/services"
)

const testBaseURL = "http://signage.test"

type testEnv struct {
	cfg    *config.Config
	router *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		BaseURL:        testBaseURL,
		PlaylistsFile:  filepath.Join(dir, "data", "playlists.json"),
		UploadsDir:     filepath.Join(dir, "uploads"),
		DefaultScreens: []string{"milano", "cambiago"},
		MaxUploadBytes: 64,
		UploadPatterns: "*.mp4",
	}
	svc := services.NewPlaylistService(
		services.NewPlaylistStore(cfg.PlaylistsFile, cfg.DefaultScreens),
		services.NewAssetStore(cfg),
	)

	playlists := NewPlaylistHandler(svc)
	assets := NewAssetHandler(svc)
	health := NewHealthHandler(svc)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", health.Health)
	r.HandleFunc("/api/playlist/{screenId}", playlists.GetPlaylist).Methods(http.MethodGet)
	r.HandleFunc("/api/upload", assets.Upload).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/playlist", playlists.GetTable).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/playlist/{screenId}", playlists.ReplacePlaylist).Methods(http.MethodPut)
	r.HandleFunc("/api/admin/file/{filename}", assets.DeleteFile).Methods(http.MethodDelete)
	r.HandleFunc("/uploads/{filename}", assets.ServeAsset).Methods(http.MethodGet)
	return &testEnv{cfg: cfg, router: r}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, field, filename, contentType, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "ignored"))
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

func TestUploadHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, "file", "my clip.mp4", "video/mp4", "video")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "my clip.mp4", resp.File.OriginalName)
	assert.Regexp(t, `^\d+_my_clip\.mp4$`, resp.File.Filename)
	assert.Equal(t, "/uploads/"+resp.File.Filename, resp.File.RelURL)
	assert.Equal(t, testBaseURL+resp.File.RelURL, resp.File.URL)
	assert.Equal(t, int64(5), resp.File.Size)
}

func TestUploadHandlerRejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		rec  func() *httptest.ResponseRecorder
		want int
	}{
		{"wrong type", func() *httptest.ResponseRecorder {
			return env.upload(t, "file", "clip.avi", "video/x-msvideo", "video")
		}, http.StatusUnsupportedMediaType},
		{"too large", func() *httptest.ResponseRecorder {
			return env.upload(t, "file", "clip.mp4", "video/mp4", strings.Repeat("x", 65))
		}, http.StatusRequestEntityTooLarge},
		{"wrong field", func() *httptest.ResponseRecorder {
			return env.upload(t, "video", "clip.mp4", "video/mp4", "video")
		}, http.StatusBadRequest},
		{"not multipart", func() *httptest.ResponseRecorder {
			return env.do(t, httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}")))
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec()
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestReplacePlaylistHandler(t *testing.T) {
	env := newTestEnv(t)

	body := `{"items":[{"title":"Ad","relUrl":"/uploads/1_clip.mp4","durationSec":10},{"title":"no ref"}]}`
	rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/admin/playlist/milano", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true,"screenId":"milano","count":1}`, rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/playlist", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var table models.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	require.Len(t, table["milano"], 1)
	assert.Equal(t, "/uploads/1_clip.mp4", table["milano"][0].URL)
	assert.Empty(t, table["cambiago"])
}

func TestReplacePlaylistHandlerBadInput(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{"items":"not-an-array"}`, `{}`, `{"items":{}}`, `not json`} {
		rec := env.do(t, httptest.NewRequest(http.MethodPut, "/api/admin/playlist/milano", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.NoFileExists(t, env.cfg.PlaylistsFile, "failed writes must not touch the table")
}

func TestGetPlaylistHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/playlist/nowhere", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "nowhere", resp["screenId"])
	assert.Equal(t, []any{}, resp["items"])
	assert.NotEmpty(t, resp["updatedAt"])
}

func TestDeleteFileHandler(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/admin/file/missing.mp4", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	}

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/admin/file/..", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeAsset(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.cfg.UploadsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.UploadsDir, "1_clip.mp4"), []byte("0123456789"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.UploadsDir, ".upload-123"), []byte("partial"), 0o644))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/uploads/1_clip.mp4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0123456789", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/uploads/1_clip.mp4", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec = env.do(t, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())
	assert.Equal(t, "bytes 2-4/10", rec.Header().Get("Content-Range"))

	for _, name := range []string{".upload-123", "missing.mp4", "a%20b.mp4"} {
		rec = env.do(t, httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.NoError(t, os.MkdirAll(filepath.Dir(env.cfg.PlaylistsFile), 0o755))
	require.NoError(t, os.WriteFile(env.cfg.PlaylistsFile, []byte("{"), 0o644))
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("%w: x", services.ErrValidation)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(services.ErrPayloadTooLarge))
	assert.Equal(t, http.StatusUnsupportedMediaType, statusFor(services.ErrUnsupportedMediaType))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("%w: disk", services.ErrIO)))
}
