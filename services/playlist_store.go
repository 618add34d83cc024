package services

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"signage-server/logging"
	"signage-server/metrics"
	"signage-server/models"
	"signage-server/utils"
)

// PlaylistStore persists the playlist table as a single JSON document
type PlaylistStore struct {
	path           string
	defaultScreens []string
	mutex          sync.Mutex
	fileLock       *flock.Flock
	logger         zerolog.Logger
}

// NewPlaylistStore creates a store backed by the file at path. Screens in
// defaultScreens exist with an empty playlist until the first write.
func NewPlaylistStore(path string, defaultScreens []string) *PlaylistStore {
	return &PlaylistStore{
		path:           path,
		defaultScreens: defaultScreens,
		fileLock:       flock.New(path + ".lock"),
		logger:         logging.WithComponent("playlist_store"),
	}
}

// Init creates the data directory and writes the default table if no table
// has been committed yet.
func (s *PlaylistStore) Init() error {
	if utils.FileExists(s.path) {
		return nil
	}
	s.logger.Info().Str("path", s.path).Strs("screens", s.defaultScreens).Msg("creating default playlists")
	return s.Update(func(models.Table) error { return nil })
}

// Load reads the current table from disk. Every call reflects the last
// committed Save.
func (s *PlaylistStore) Load() (models.Table, error) {
	var table models.Table
	if err := utils.ReadJSON(s.path, &table); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.defaultTable(), nil
		}
		return nil, fmt.Errorf("%w: read playlists: %w", ErrIO, err)
	}
	if table == nil {
		table = models.Table{}
	}
	for screenID, entries := range table {
		if entries == nil {
			table[screenID] = []models.Entry{}
		}
	}
	return table, nil
}

// Save atomically replaces the persisted table. It does not serialize
// against concurrent writers; read-modify-write sequences go through Update.
func (s *PlaylistStore) Save(table models.Table) error {
	if err := utils.WriteJSONAtomic(s.path, table); err != nil {
		return fmt.Errorf("%w: write playlists: %w", ErrIO, err)
	}
	return nil
}

// Update runs a load-modify-save cycle under the store's write lock. The
// lock is held both in-process and on a lock file next to the table, so
// other processes sharing the data directory are serialized too. If fn
// returns an error nothing is saved.
func (s *PlaylistStore) Update(fn func(models.Table) error) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.PlaylistWritesTotal.WithLabelValues(status).Inc()
		metrics.PlaylistWriteDuration.Observe(time.Since(start).Seconds())
	}()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := utils.EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("%w: create data directory: %w", ErrIO, err)
	}
	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("%w: lock playlists: %w", ErrIO, err)
	}
	defer func() {
		if uerr := s.fileLock.Unlock(); uerr != nil {
			s.logger.Warn().Err(uerr).Msg("failed to release playlist lock")
		}
	}()

	table, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(table); err != nil {
		return err
	}
	if err := s.Save(table); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("saving playlists failed")
		return err
	}
	s.logger.Debug().Int("screens", len(table)).Msg("playlists saved")
	return nil
}

func (s *PlaylistStore) defaultTable() models.Table {
	table := make(models.Table, len(s.defaultScreens))
	for _, screenID := range s.defaultScreens {
		table[screenID] = []models.Entry{}
	}
	return table
}
