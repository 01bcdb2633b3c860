package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webgrab/pkg/log"
	"github.com/Sriram-PR/webgrab/pkg/models"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

const (
	downloadKeyPrefix = "dl:"        // Prefix for download URL keys in DB
	historyDBDir      = "history_db" // Subdirectory name within stateDir for Badger DB files
	gcDiscardRatio    = 0.5
)

// BadgerStore implements the HistoryStore interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Count
}

var _ HistoryStore = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) the download history database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	dbPath := filepath.Join(stateDir, historyDBDir)
	logger.Debugf("Opening download history database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1) // Only the latest outcome matters

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing history keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}

	return store, nil
}

// countKeys performs a one-time full key scan (used only during initialization)
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(downloadKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// RecordDownload implements the DownloadStore interface
func (s *BadgerStore) RecordDownload(normalizedURL string, entry *models.DownloadEntry) error {
	if entry == nil || !entry.Status.IsValid() {
		return fmt.Errorf("%w: refusing to record invalid download entry for '%s'", utils.ErrDatabase, normalizedURL)
	}
	key := []byte(downloadKeyPrefix + normalizedURL)
	added := false

	err := s.dbUpdate(func(txn *badger.Txn) error {
		toStore := *entry
		toStore.Attempts = 1

		item, errGet := txn.Get(key)
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
			added = true
		case errGet != nil:
			return errGet
		default:
			var previous models.DownloadEntry
			errValue := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &previous)
			})
			if errValue != nil {
				s.log.Warnf("Failed to decode existing entry for key '%s', overwriting: %v", string(key), errValue)
				break
			}
			toStore.Attempts = previous.Attempts + 1
			switch {
			case toStore.Status == models.DownloadStatusSkipped:
				// The file on disk is still the one the earlier save described
				toStore.FinalURL = previous.FinalURL
				toStore.Referer = previous.Referer
				toStore.ETag = previous.ETag
				toStore.LastModified = previous.LastModified
				toStore.Size = previous.Size
				toStore.SavedAt = previous.SavedAt
			case toStore.Status == models.DownloadStatusFailure && previous.Status == models.DownloadStatusSuccess:
				toStore.SavedAt = previous.SavedAt
				toStore.FinalURL = previous.FinalURL
				toStore.Size = previous.Size
			}
		}

		data, errMarshal := json.Marshal(&toStore)
		if errMarshal != nil {
			return errMarshal
		}
		return txn.Set(key, data)
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in RecordDownload: %v", err)
		return fmt.Errorf("%w: recording download key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return nil
}

// LookupDownload implements the DownloadStore interface
func (s *BadgerStore) LookupDownload(normalizedURL string) (models.DownloadStatus, *models.DownloadEntry, error) {
	status := models.DownloadStatusNotFound
	var entry *models.DownloadEntry
	key := []byte(downloadKeyPrefix + normalizedURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting download key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.DownloadEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				return fmt.Errorf("%w: decoding download key '%s': %w", utils.ErrDatabase, string(key), errJSON)
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in LookupDownload for key '%s': %v", string(key), errView)
		return models.DownloadStatusDBError, nil, errView
	}
	return status, entry, nil
}

// ListDownloads implements the HistoryAdmin interface
func (s *BadgerStore) ListDownloads(ctx context.Context) ([]models.DownloadEntry, error) {
	var entries []models.DownloadEntry
	err := s.forEach(ctx, func(_ string, entry models.DownloadEntry) error {
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// forEach decodes every download entry in key order; undecodable values are logged and skipped
func (s *BadgerStore) forEach(ctx context.Context, fn func(normalizedURL string, entry models.DownloadEntry) error) error {
	prefix := []byte(downloadKeyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			normalizedURL := string(bytes.TrimPrefix(item.KeyCopy(nil), prefix))
			var entry models.DownloadEntry
			errValue := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if errValue != nil {
				s.log.Warnf("Skipping undecodable history entry '%s': %v", normalizedURL, errValue)
				continue
			}
			if err := fn(normalizedURL, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: iterating download history: %w", utils.ErrDatabase, err)
	}
	return err
}

// WriteHistory implements the HistoryAdmin interface.
// Columns: status, saved_at (RFC 3339, empty if never saved), url, local_path, error_type.
func (s *BadgerStore) WriteHistory(ctx context.Context, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create history file '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	var writeErr error
	writtenCount := 0

	iterErr := s.forEach(ctx, func(normalizedURL string, entry models.DownloadEntry) error {
		savedAt := ""
		if !entry.SavedAt.IsZero() {
			savedAt = entry.SavedAt.UTC().Format(time.RFC3339)
		}
		line := strings.Join([]string{
			entry.Status.String(), savedAt, normalizedURL, entry.LocalPath, entry.ErrorType,
		}, "\t")
		if _, err := writer.WriteString(line + "\n"); err != nil {
			writeErr = err
			return err
		}
		writtenCount++
		return nil
	})

	if flushErr := writer.Flush(); flushErr != nil && writeErr == nil {
		writeErr = flushErr
	}
	if syncErr := file.Sync(); syncErr != nil && writeErr == nil {
		writeErr = syncErr
	}

	if iterErr != nil && !errors.Is(iterErr, writeErr) {
		return iterErr
	}
	if writeErr != nil {
		return fmt.Errorf("%w: writing history file '%s': %w", utils.ErrFilesystem, filePath, writeErr)
	}
	s.log.Debugf("Wrote %d history entries to %s", writtenCount, filePath)
	return nil
}

// Count implements the HistoryAdmin interface
func (s *BadgerStore) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// CollectGarbage implements the HistoryAdmin interface
func (s *BadgerStore) CollectGarbage() error {
	if s.db == nil || s.db.IsClosed() {
		return fmt.Errorf("%w: database is closed", utils.ErrDatabase)
	}

	s.log.Debug("Running BadgerDB value log garbage collection...")
	var err error
	// Loop GC until it returns ErrNoRewrite or another error
	for {
		if err = s.db.RunValueLogGC(gcDiscardRatio); err != nil {
			break
		}
	}
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return fmt.Errorf("%w: value log GC: %w", utils.ErrDatabase, err)
}

// Close implements the HistoryAdmin interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing history DB: %v", err)
			return fmt.Errorf("%w: closing history DB: %w", utils.ErrDatabase, err)
		}
		s.log.Debug("History DB closed.")
	}
	return nil
}
