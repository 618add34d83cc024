package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Port           string
	BaseURL        string
	AdminToken     string
	DataDir        string
	PlaylistsFile  string
	UploadsDir     string
	WebDir         string
	DefaultScreens []string
	MaxUploadBytes int64
	UploadPatterns string
	AdminRateLimit int
	LogLevel       string
}

// EnvFile is read from the working directory at startup when present.
// Variables set in the environment take precedence over it.
const EnvFile = ".env"

const defaultMaxUploadBytes = int64(1024 * 1024 * 1024)

// LoadConfig loads the configuration from environment variables, an optional
// .env file, or defaults
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigFile(EnvFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", EnvFile, err)
	}

	cwd, _ := os.Getwd()

	v.SetDefault("PORT", "3000")
	v.SetDefault("ADMIN_TOKEN", "change_me")
	v.SetDefault("DATA_DIR", filepath.Join(cwd, "data"))
	v.SetDefault("UPLOADS_DIR", filepath.Join(cwd, "uploads"))
	v.SetDefault("WEB_DIR", filepath.Join(cwd, "web"))
	v.SetDefault("DEFAULT_SCREENS", "milano,cambiago")
	v.SetDefault("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	v.SetDefault("UPLOAD_PATTERNS", "*.mp4")
	v.SetDefault("ADMIN_RATE_LIMIT", 600)
	v.SetDefault("LOG_LEVEL", "info")

	port := v.GetString("PORT")
	baseURL := v.GetString("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	dataDir := v.GetString("DATA_DIR")

	maxUploadBytes := v.GetInt64("MAX_UPLOAD_BYTES")
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	return &Config{
		Port:           port,
		BaseURL:        strings.TrimRight(baseURL, "/"),
		AdminToken:     v.GetString("ADMIN_TOKEN"),
		DataDir:        dataDir,
		PlaylistsFile:  filepath.Join(dataDir, "playlists.json"),
		UploadsDir:     v.GetString("UPLOADS_DIR"),
		WebDir:         v.GetString("WEB_DIR"),
		DefaultScreens: splitList(v.GetString("DEFAULT_SCREENS")),
		MaxUploadBytes: maxUploadBytes,
		UploadPatterns: v.GetString("UPLOAD_PATTERNS"),
		AdminRateLimit: v.GetInt("ADMIN_RATE_LIMIT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}, nil
}

// splitList turns a comma separated value into its trimmed, non-empty parts
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
