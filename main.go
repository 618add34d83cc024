package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"signage-server/config"
	"signage-server/handlers"
	"signage-server/logging"
	"signage-server/middleware"
	"signage-server/services"
	"signage-server/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger := logging.WithComponent("main")
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Configure(logging.Config{Level: cfg.LogLevel})
	logger := logging.WithComponent("main")

	if err := utils.EnsureDir(cfg.UploadsDir); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.UploadsDir).Msg("failed to create uploads directory")
	}

	playlistStore := services.NewPlaylistStore(cfg.PlaylistsFile, cfg.DefaultScreens)
	if err := playlistStore.Init(); err != nil {
		logger.Fatal().Err(err).Str("file", cfg.PlaylistsFile).Msg("failed to initialize playlists")
	}
	assetStore := services.NewAssetStore(cfg)
	playlistService := services.NewPlaylistService(playlistStore, assetStore)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           newRouter(cfg, playlistService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("base_url", cfg.BaseURL).
			Str("port", cfg.Port).
			Str("playlists", cfg.PlaylistsFile).
			Str("uploads", cfg.UploadsDir).
			Msg("signage server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newRouter wires every route of the server
func newRouter(cfg *config.Config, playlistService *services.PlaylistService) http.Handler {
	playlistHandler := handlers.NewPlaylistHandler(playlistService)
	assetHandler := handlers.NewAssetHandler(playlistService)
	healthHandler := handlers.NewHealthHandler(playlistService)

	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.HandleFunc("/healthz", healthHandler.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Public routes used by the screens
	r.HandleFunc("/api/playlist/{screenId}", playlistHandler.GetPlaylist).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{filename}", assetHandler.ServeAsset).Methods(http.MethodGet, http.MethodHead)

	// Admin routes
	admin := r.PathPrefix("/api").Subrouter()
	admin.Use(middleware.RateLimit(cfg.AdminRateLimit, time.Minute), middleware.AdminAuth(cfg.AdminToken))
	admin.HandleFunc("/upload", assetHandler.Upload).Methods(http.MethodPost)
	admin.HandleFunc("/admin/playlist", playlistHandler.GetTable).Methods(http.MethodGet)
	admin.HandleFunc("/admin/playlist/{screenId}", playlistHandler.ReplacePlaylist).Methods(http.MethodPut)
	admin.HandleFunc("/admin/file/{filename}", assetHandler.DeleteFile).Methods(http.MethodDelete)

	// Web UI (player.html, admin.html)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.WebDir))).Methods(http.MethodGet, http.MethodHead)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return corsHandler.Handler(middleware.RequestLogger(r))
}
