package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signage-server/config"
	"signage-server/logging"
	"signage-server/metrics"
	"signage-server/models"
	"signage-server/utils"
)

// UploadsPrefix is the URL path under which uploaded files are served
const UploadsPrefix = "/uploads/"

// maxNameAttempts bounds the search for a free filename when several
// uploads of the same name land in the same millisecond.
const maxNameAttempts = 1000

var acceptedMIMETypes = map[string]bool{
	"video/mp4": true,
}

// schemePrefix matches a leading URL scheme such as "https:".
var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

// AssetStore manages uploaded video files on disk
type AssetStore struct {
	dir      string
	baseURL  string
	maxBytes int64
	patterns string
	now      func() time.Time
	logger   zerolog.Logger
}

// NewAssetStore creates a new asset store
func NewAssetStore(cfg *config.Config) *AssetStore {
	return &AssetStore{
		dir:      cfg.UploadsDir,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxUploadBytes,
		patterns: cfg.UploadPatterns,
		now:      time.Now,
		logger:   logging.WithComponent("asset_store"),
	}
}

// Dir returns the directory holding uploaded files
func (s *AssetStore) Dir() string {
	return s.dir
}

// MaxBytes returns the upload size limit
func (s *AssetStore) MaxBytes() int64 {
	return s.maxBytes
}

// Accepts reports whether a file with this name or declared content type
// is an accepted video format.
func (s *AssetStore) Accepts(originalName, contentType string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && acceptedMIMETypes[strings.ToLower(mediaType)] {
		return true
	}
	return utils.MatchesAnyPattern(originalName, s.patterns)
}

// Put stores the content of r under a new unique filename derived from the
// upload time and the sanitized original name.
func (s *AssetStore) Put(r io.Reader, originalName, contentType string) (models.Asset, error) {
	if !s.Accepts(originalName, contentType) {
		metrics.UploadsTotal.WithLabelValues("unsupported").Inc()
		return models.Asset{}, fmt.Errorf("%w: only MP4 files are allowed", ErrUnsupportedMediaType)
	}

	asset, err := s.put(r, originalName)
	switch {
	case err == nil:
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		metrics.UploadedBytesTotal.Add(float64(asset.Size))
	case errors.Is(err, ErrPayloadTooLarge):
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
	default:
		metrics.UploadsTotal.WithLabelValues("error").Inc()
	}
	return asset, err
}

func (s *AssetStore) put(r io.Reader, originalName string) (models.Asset, error) {
	if err := utils.EnsureDir(s.dir); err != nil {
		return models.Asset{}, fmt.Errorf("%w: create uploads directory: %w", ErrIO, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return models.Asset{}, fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		tmp.Close()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return models.Asset{}, fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, s.maxBytes)
		}
		return models.Asset{}, fmt.Errorf("%w: write upload: %w", ErrIO, err)
	}
	if size > s.maxBytes {
		tmp.Close()
		return models.Asset{}, fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, s.maxBytes)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return models.Asset{}, fmt.Errorf("%w: sync upload: %w", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return models.Asset{}, fmt.Errorf("%w: close upload: %w", ErrIO, err)
	}

	filename, err := s.publish(tmpName, utils.SanitizeName(filepath.Base(originalName)))
	if err != nil {
		return models.Asset{}, err
	}

	relURL := s.RelURL(filename)
	s.logger.Info().Str("filename", filename).Int64("size", size).Msg("asset stored")
	return models.Asset{
		Filename:     filename,
		OriginalName: originalName,
		URL:          s.Resolve(relURL),
		RelURL:       relURL,
		Size:         size,
	}, nil
}

// publish hard-links the finished temp file under "<millis>_<name>". Link
// never replaces an existing file, so a taken name moves the token forward.
func (s *AssetStore) publish(tmpName, safeName string) (string, error) {
	token := s.now().UnixMilli()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		filename := fmt.Sprintf("%d_%s", token, safeName)
		err := os.Link(tmpName, filepath.Join(s.dir, filename))
		if err == nil {
			return filename, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: publish upload: %w", ErrIO, err)
		}
		token++
	}
	return "", fmt.Errorf("%w: no free filename for %q", ErrIO, safeName)
}

// Delete removes an uploaded file and returns the cleaned filename it
// resolved to. Deleting a file that does not exist succeeds.
func (s *AssetStore) Delete(filename string) (string, error) {
	name := utils.StripName(filename)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid filename %q", ErrValidation, filename)
	}

	err := os.Remove(filepath.Join(s.dir, name))
	switch {
	case err == nil:
		s.logger.Info().Str("filename", name).Msg("asset deleted")
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug().Str("filename", name).Msg("asset already gone")
	default:
		return "", fmt.Errorf("%w: delete %s: %w", ErrIO, name, err)
	}
	return name, nil
}

// RelURL returns the store-relative reference of an uploaded file
func (s *AssetStore) RelURL(filename string) string {
	return UploadsPrefix + filename
}

// Resolve turns a store-relative reference into an absolute URL. References
// that already carry a URL scheme are returned unchanged.
func (s *AssetStore) Resolve(reference string) string {
	if schemePrefix.MatchString(reference) {
		return reference
	}
	return s.baseURL + "/" + strings.TrimLeft(reference, "/")
}

// FilenameFromReference returns the uploaded filename a reference points
// at, or "" when the reference is not an uploaded file of this store.
// Both "/uploads/<name>" and "<base URL>/uploads/<name>" are recognized.
func (s *AssetStore) FilenameFromReference(reference string) string {
	u, err := url.Parse(reference)
	if err != nil {
		return ""
	}

	p := u.Path
	if u.Scheme != "" {
		base, err := url.Parse(s.baseURL)
		if err != nil || !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
			return ""
		}
		basePath := strings.TrimRight(base.Path, "/")
		if !strings.HasPrefix(p, basePath+"/") {
			return ""
		}
		p = strings.TrimPrefix(p, basePath)
	}

	dir, name := path.Split("/" + strings.TrimLeft(p, "/"))
	if dir != UploadsPrefix {
		return ""
	}
	return name
}
