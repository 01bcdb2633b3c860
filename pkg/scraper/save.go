package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webgrab/pkg/fsmeta"
	"github.com/Sriram-PR/webgrab/pkg/models"
	"github.com/Sriram-PR/webgrab/pkg/parse"
	"github.com/Sriram-PR/webgrab/pkg/progress"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// SaveOptions controls a single SaveFile call. The zero value saves under the
// URL's basename in the current directory, buffered, without logging.
type SaveOptions struct {
	Name      string // Local file name; defaults to the URL path basename
	Referer   string // Referer header; defaults to the URL itself
	OutputDir string // Joined in front of Name when set
	Clobber   bool   // Download even if a non-empty file already exists
	Progress  bool   // Stream through a progress bar into a .part file, then rename
	LogSaved  bool   // Log "saved '<path>'" at info level
	SaveMsg   string // Logged verbatim at info level instead of the default message
}

// SaveFile downloads rawURL to disk and returns the local path.
// Unless opts.Clobber is set, an existing non-empty file is returned without fetching.
// The saved file is tagged with its origin URL, referrer, ETag and Last-Modified,
// and its mtime is set from Last-Modified when the server sends one.
func (s *Scraper) SaveFile(ctx context.Context, rawURL string, opts SaveOptions) (string, error) {
	name := opts.Name
	if name == "" {
		name = utils.FilenameFromURL(rawURL)
	}
	if opts.OutputDir != "" {
		name = filepath.Join(opts.OutputDir, name)
	}
	saveLog := s.log.WithFields(logrus.Fields{"url": rawURL, "path": name})

	if !opts.Clobber {
		exists, err := fileNonEmpty(name)
		if err != nil {
			return "", err
		}
		if exists {
			saveLog.Debug("skipping")
			s.record(rawURL, &models.DownloadEntry{
				URL:         rawURL,
				LocalPath:   name,
				Status:      models.DownloadStatusSkipped,
				LastAttempt: time.Now(),
			})
			return name, nil
		}
	}

	referer := opts.Referer
	if referer == "" {
		referer = rawURL
	}

	entry, err := s.download(ctx, rawURL, name, referer, opts.Progress, saveLog)
	if err != nil {
		s.record(rawURL, &models.DownloadEntry{
			URL:         rawURL,
			Referer:     referer,
			LocalPath:   name,
			Status:      models.DownloadStatusFailure,
			ErrorType:   utils.CategorizeError(err),
			LastAttempt: time.Now(),
		})
		return "", err
	}

	switch {
	case opts.SaveMsg != "":
		s.log.Info(opts.SaveMsg)
	case opts.LogSaved:
		s.log.Infof("saved '%s'", name)
	}
	s.record(rawURL, entry)
	return name, nil
}

// download fetches rawURL into name and applies the file metadata
func (s *Scraper) download(ctx context.Context, rawURL, name, referer string, withProgress bool, saveLog *logrus.Entry) (*models.DownloadEntry, error) {
	resp, err := s.Get(ctx, rawURL, WithHeader("Referer", referer))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var size int64
	if withProgress {
		size, err = s.writeStreamed(resp, name)
	} else {
		size, err = writeBuffered(resp, name)
	}
	if err != nil {
		return nil, err
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")

	err = s.attrs.SetAttrs(name, map[string]string{
		fsmeta.AttrOriginURL:    finalURL,
		fsmeta.AttrReferrerURL:  referer,
		fsmeta.AttrETag:         etag,
		fsmeta.AttrLastModified: lastModified,
	})
	if errors.Is(err, utils.ErrXattrUnsupported) {
		saveLog.Warnf("Cannot tag saved file: %v", err)
	} else if err != nil {
		return nil, err
	}

	if lastModified != "" {
		mtime, err := utils.HTTPDateToTime(lastModified)
		if err != nil {
			return nil, fmt.Errorf("parsing Last-Modified of %s: %w", rawURL, err)
		}
		if err := s.attrs.SetMtime(name, mtime); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	return &models.DownloadEntry{
		URL:          rawURL,
		FinalURL:     finalURL,
		Referer:      referer,
		LocalPath:    name,
		ETag:         etag,
		LastModified: lastModified,
		Size:         size,
		Status:       models.DownloadStatusSuccess,
		SavedAt:      now,
		LastAttempt:  now,
	}, nil
}

// writeStreamed copies the body chunk by chunk into a hidden .part sibling of name,
// reporting progress, and renames it into place once the body is complete.
// A failure leaves the .part file behind and name untouched.
func (s *Scraper) writeStreamed(resp *http.Response, name string) (int64, error) {
	partPath := partPathFor(name)
	f, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("%w: creating '%s': %w", utils.ErrFilesystem, partPath, err)
	}

	var written int64
	chunks := progress.Track(progress.Chunks(resp.Body, s.cfg.ChunkSize), resp.ContentLength, s.progress)
	for chunk, readErr := range chunks {
		if readErr != nil {
			f.Close()
			return written, fmt.Errorf("%w: %s: %w", utils.ErrResponseBodyRead, resp.Request.URL, readErr)
		}
		n, writeErr := f.Write(chunk)
		written += int64(n)
		if writeErr != nil {
			f.Close()
			return written, fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, partPath, writeErr)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return written, fmt.Errorf("%w: syncing '%s': %w", utils.ErrFilesystem, partPath, err)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, partPath, err)
	}
	if err := os.Rename(partPath, name); err != nil {
		return written, fmt.Errorf("%w: renaming '%s': %w", utils.ErrFilesystem, partPath, err)
	}
	return written, nil
}

// writeBuffered reads the whole body into memory, then writes it to name in one go
func writeBuffered(resp *http.Response, name string) (int64, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", utils.ErrResponseBodyRead, resp.Request.URL, err)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return 0, fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, name, err)
	}
	return int64(len(data)), nil
}

// partPathFor returns the in-progress path for name: ".<base>.part" in the same directory
func partPathFor(name string) string {
	dir, base := filepath.Split(name)
	return filepath.Join(dir, "."+base+".part")
}

// fileNonEmpty reports whether path is a regular file with at least one byte
func fileNonEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: checking '%s': %w", utils.ErrFilesystem, path, err)
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// record stores a download outcome when a history store is configured.
// A store failure is logged and does not fail the save.
func (s *Scraper) record(rawURL string, entry *models.DownloadEntry) {
	if s.store == nil {
		return
	}
	key := rawURL
	if normalized, _, err := parse.ParseAndNormalize(rawURL); err == nil {
		key = normalized
	}
	if err := s.store.RecordDownload(key, entry); err != nil {
		s.log.WithField("url", rawURL).Warnf("Failed to record download history: %v", err)
	}
}
