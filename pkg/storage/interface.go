package storage

import (
	"context"

	"github.com/Sriram-PR/webgrab/pkg/models"
)

// DownloadStore records what SaveFile did for each URL
type DownloadStore interface {
	// RecordDownload stores entry under the normalized URL, bumping its attempt counter.
	// A failure entry keeps the SavedAt, FinalURL and Size of an earlier success.
	// A skipped entry keeps every detail of the file already on disk.
	RecordDownload(normalizedURL string, entry *models.DownloadEntry) error

	// LookupDownload retrieves the entry for a normalized URL.
	// Returns status (DownloadStatusSuccess, Skipped, Failure, NotFound, DBError), the entry if found, and any error
	LookupDownload(normalizedURL string) (status models.DownloadStatus, entry *models.DownloadEntry, err error)
}

// HistoryAdmin handles listing and lifecycle operations
type HistoryAdmin interface {
	// ListDownloads returns every entry, ordered by key
	ListDownloads(ctx context.Context) ([]models.DownloadEntry, error)

	// WriteHistory writes one tab-separated line per entry to filePath
	WriteHistory(ctx context.Context, filePath string) error

	// Count returns the number of recorded URLs
	Count() (int, error)

	// CollectGarbage runs value log GC until nothing is left to rewrite
	CollectGarbage() error

	// Close cleanly closes the database connection
	Close() error
}

// HistoryStore combines all store interfaces for components that need full access
type HistoryStore interface {
	DownloadStore
	HistoryAdmin
}
