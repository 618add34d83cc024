package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"signage-server/models"
)

// DefaultTitle is used for entries submitted without a title
const DefaultTitle = "Video"

// Coordinator keeps playlist entries consistent with the asset store
type Coordinator struct {
	assets *AssetStore
}

// NewCoordinator creates a new coordinator
func NewCoordinator(assets *AssetStore) *Coordinator {
	return &Coordinator{assets: assets}
}

// Normalize turns caller-supplied items into playlist entries. Items that
// are not objects or carry no string reference are dropped; the order of
// the rest is kept. Missing ids are derived from now and the item's
// position, skipping any id a caller already used.
func (c *Coordinator) Normalize(raw []any, now time.Time) []models.Entry {
	entries := make([]models.Entry, 0, len(raw))
	positions := make([]int, 0, len(raw))
	taken := make(map[string]bool, len(raw))
	for index, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		reference := ""
		if truthy(fields["relUrl"]) {
			reference = referenceString(fields["relUrl"])
		} else if truthy(fields["url"]) {
			reference = referenceString(fields["url"])
		}
		if reference == "" {
			continue
		}

		id := ""
		if truthy(fields["id"]) {
			id = stringify(fields["id"])
			taken[id] = true
		}

		title := DefaultTitle
		if truthy(fields["title"]) {
			title = stringify(fields["title"])
		}

		entries = append(entries, models.Entry{
			ID:          id,
			Title:       title,
			URL:         reference,
			DurationSec: duration(fields["durationSec"]),
		})
		positions = append(positions, index)
	}

	for i := range entries {
		if entries[i].ID != "" {
			continue
		}
		id := fmt.Sprintf("%d_%d", now.UnixMilli(), positions[i])
		for n := 1; taken[id]; n++ {
			id = fmt.Sprintf("%d_%d_%d", now.UnixMilli(), positions[i], n)
		}
		taken[id] = true
		entries[i].ID = id
	}
	return entries
}

// Resolve returns a copy of entries with every reference resolved to an
// absolute URL.
func (c *Coordinator) Resolve(entries []models.Entry) []models.Entry {
	resolved := make([]models.Entry, len(entries))
	for i, entry := range entries {
		entry.URL = c.assets.Resolve(entry.URL)
		resolved[i] = entry
	}
	return resolved
}

// Purge removes, from every screen of table, the entries that reference
// the uploaded file filename. It returns the number of entries removed.
func (c *Coordinator) Purge(table models.Table, filename string) int {
	if filename == "" {
		return 0
	}
	removed := 0
	for screenID, entries := range table {
		kept := make([]models.Entry, 0, len(entries))
		for _, entry := range entries {
			if c.assets.FilenameFromReference(entry.URL) == filename {
				removed++
				continue
			}
			kept = append(kept, entry)
		}
		table[screenID] = kept
	}
	return removed
}

// truthy mirrors the loose truthiness of decoded JSON values: null, false,
// 0, NaN and "" are false.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case float64:
		return value != 0 && !math.IsNaN(value)
	case string:
		return value != ""
	default:
		return true
	}
}

// referenceString accepts only strings and numbers as references; anything
// else yields "" and the item is dropped.
func referenceString(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	}
}

// duration coerces a durationSec value to a positive number of seconds,
// or nil when absent or not usable.
func duration(v any) *float64 {
	if !truthy(v) {
		return nil
	}

	var seconds float64
	switch value := v.(type) {
	case float64:
		seconds = value
	case bool:
		seconds = 1
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil
		}
		seconds = parsed
	default:
		return nil
	}

	if seconds <= 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return nil
	}
	return &seconds
}
