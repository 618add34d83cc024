package models

// Entry represents a single item of a screen's playlist
type Entry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`         // store-relative path or absolute URL
	DurationSec *float64 `json:"durationSec"` // nil plays the video to its end
}

// Table maps a screen identifier to its ordered playlist. The whole table
// is persisted as one document.
type Table map[string][]Entry

// Entries returns the playlist of a screen, or an empty one if the screen
// has never been written.
func (t Table) Entries(screenID string) []Entry {
	if entries, ok := t[screenID]; ok && entries != nil {
		return entries
	}
	return []Entry{}
}

// Asset describes an uploaded file
type Asset struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	URL          string `json:"url"`
	RelURL       string `json:"relUrl"`
	Size         int64  `json:"size"`
}

// PlaylistResponse is returned to screens fetching their playlist
type PlaylistResponse struct {
	ScreenID  string  `json:"screenId"`
	UpdatedAt string  `json:"updatedAt"`
	Items     []Entry `json:"items"`
}

// PlaylistUpdateRequest is the body of an admin playlist replace. Items is
// kept raw so a non-array value can be rejected explicitly.
type PlaylistUpdateRequest struct {
	Items any `json:"items"`
}

// PlaylistUpdateResponse acknowledges a playlist replace
type PlaylistUpdateResponse struct {
	OK       bool   `json:"ok"`
	ScreenID string `json:"screenId"`
	Count    int    `json:"count"`
}

// UploadResponse acknowledges an upload
type UploadResponse struct {
	OK   bool  `json:"ok"`
	File Asset `json:"file"`
}
