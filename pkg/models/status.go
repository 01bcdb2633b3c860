package models

// DownloadStatus represents the outcome of a save in the history database
type DownloadStatus string

const (
	DownloadStatusUnset    DownloadStatus = ""          // Zero value = unset/unknown
	DownloadStatusSuccess  DownloadStatus = "success"   // File fetched and written
	DownloadStatusSkipped  DownloadStatus = "skipped"   // Non-empty file already present, nothing fetched
	DownloadStatusFailure  DownloadStatus = "failure"   // Fetch or write failed
	DownloadStatusNotFound DownloadStatus = "not_found" // URL not in database
	DownloadStatusDBError  DownloadStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s DownloadStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status can be stored in an entry
func (s DownloadStatus) IsValid() bool {
	switch s {
	case DownloadStatusSuccess, DownloadStatusSkipped, DownloadStatusFailure:
		return true
	}
	return false
}
