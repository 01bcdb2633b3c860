package models

import "time"

// DownloadEntry stores the outcome of saving one URL in the history database
type DownloadEntry struct {
	URL          string         `json:"url"`                     // URL as requested
	FinalURL     string         `json:"final_url,omitempty"`     // URL after redirects (on success)
	Referer      string         `json:"referer,omitempty"`       // Referer header sent
	LocalPath    string         `json:"local_path"`              // Target file path
	ETag         string         `json:"etag,omitempty"`          // ETag response header
	LastModified string         `json:"last_modified,omitempty"` // Last-Modified response header, verbatim
	Size         int64          `json:"size,omitempty"`          // Bytes on disk
	Status       DownloadStatus `json:"status"`                  // "success", "skipped" or "failure"
	ErrorType    string         `json:"error_type,omitempty"`    // Error category (on failure)
	SavedAt      time.Time      `json:"saved_at,omitempty"`      // Time the file was last written
	LastAttempt  time.Time      `json:"last_attempt"`            // Time of the last SaveFile call for this URL
	Attempts     int            `json:"attempts"`                // Number of SaveFile calls recorded
}
