package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// ReadJSON reads a JSON file and unmarshals it into the provided value
func ReadJSON(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(v)
}

// WriteJSONAtomic writes v as indented JSON to path. The data goes to a
// temporary file that is synced and renamed over path, so readers see
// either the previous document or the new one.
func WriteJSONAtomic(path string, v any) (err error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("cleanup pending file: %w", cerr)
		}
	}()

	encoder := json.NewEncoder(pending)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// MatchesAnyPattern reports whether name matches one of the comma separated
// glob patterns, ignoring case.
func MatchesAnyPattern(name, patterns string) bool {
	name = strings.ToLower(filepath.Base(name))
	for _, p := range strings.Split(patterns, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if matched, err := filepath.Match(p, name); err == nil && matched {
			return true
		}
	}
	return false
}

// SanitizeName replaces every character outside [A-Za-z0-9._-] with an
// underscore.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// StripName removes every character outside [A-Za-z0-9._-].
func StripName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "")
}
