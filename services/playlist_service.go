package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"signage-server/logging"
	"signage-server/metrics"
	"signage-server/models"
)

// timestampLayout is RFC 3339 with millisecond precision
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// PlaylistService exposes the screen and admin operations on playlists and
// assets
type PlaylistService struct {
	playlists   *PlaylistStore
	assets      *AssetStore
	coordinator *Coordinator
	now         func() time.Time
}

// NewPlaylistService creates a new playlist service
func NewPlaylistService(playlists *PlaylistStore, assets *AssetStore) *PlaylistService {
	return &PlaylistService{
		playlists:   playlists,
		assets:      assets,
		coordinator: NewCoordinator(assets),
		now:         time.Now,
	}
}

// GetPlaylist returns the playlist of a screen with absolute URLs. Unknown
// screens get an empty playlist.
func (s *PlaylistService) GetPlaylist(ctx context.Context, screenID string) (*models.PlaylistResponse, error) {
	table, err := s.playlists.Load()
	if err != nil {
		logger := logging.WithComponentFromContext(ctx, "playlist_service")
		logger.Error().Err(err).Str("screen", screenID).Msg("loading playlist failed")
		return nil, err
	}

	return &models.PlaylistResponse{
		ScreenID:  screenID,
		UpdatedAt: s.now().UTC().Format(timestampLayout),
		Items:     s.coordinator.Resolve(table.Entries(screenID)),
	}, nil
}

// GetTable returns every screen's playlist with store-relative references
func (s *PlaylistService) GetTable(ctx context.Context) (models.Table, error) {
	return s.playlists.Load()
}

// ReplacePlaylist normalizes rawItems and stores them as the playlist of
// screenID. rawItems must be a decoded JSON array. It returns the number of
// entries stored.
func (s *PlaylistService) ReplacePlaylist(ctx context.Context, screenID string, rawItems any) (int, error) {
	items, ok := rawItems.([]any)
	if !ok {
		return 0, fmt.Errorf("%w: `items` must be an array", ErrValidation)
	}

	entries := s.coordinator.Normalize(items, s.now())
	err := s.playlists.Update(func(table models.Table) error {
		table[screenID] = entries
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger := logging.WithComponentFromContext(ctx, "playlist_service")
	logger.Info().Str("screen", screenID).Int("submitted", len(items)).Int("stored", len(entries)).Msg("playlist replaced")
	return len(entries), nil
}

// UploadAsset stores an uploaded file
func (s *PlaylistService) UploadAsset(ctx context.Context, r io.Reader, originalName, contentType string) (models.Asset, error) {
	if r == nil || originalName == "" {
		return models.Asset{}, fmt.Errorf("%w: missing file", ErrValidation)
	}

	asset, err := s.assets.Put(r, originalName, contentType)
	if err != nil {
		logger := logging.WithComponentFromContext(ctx, "playlist_service")
		logger.Warn().Err(err).Str("original_name", originalName).Msg("upload rejected")
		return models.Asset{}, err
	}
	return asset, nil
}

// DeleteAsset removes an uploaded file and every playlist entry that
// references it. The file removal and the purge run inside one table
// update, so no concurrent playlist write can reintroduce a reference
// between them. Deleting a missing file succeeds.
func (s *PlaylistService) DeleteAsset(ctx context.Context, filename string) error {
	metrics.AssetDeletesTotal.Inc()

	var removed int
	err := s.playlists.Update(func(table models.Table) error {
		name, err := s.assets.Delete(filename)
		if err != nil {
			return err
		}
		removed = s.coordinator.Purge(table, name)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.PurgedEntriesTotal.Add(float64(removed))
	logger := logging.WithComponentFromContext(ctx, "playlist_service")
	logger.Info().Str("filename", filename).Int("purged_entries", removed).Msg("asset deleted")
	return nil
}

// Assets returns the asset store backing the service
func (s *PlaylistService) Assets() *AssetStore {
	return s.assets
}

// Ready reports whether the playlist table can be read
func (s *PlaylistService) Ready() error {
	_, err := s.playlists.Load()
	return err
}
