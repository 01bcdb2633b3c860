package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webgrab/pkg/cookies"
	"github.com/Sriram-PR/webgrab/pkg/fsmeta"
	"github.com/Sriram-PR/webgrab/pkg/models"
	"github.com/Sriram-PR/webgrab/pkg/parse"
	"github.com/Sriram-PR/webgrab/pkg/scraper"
	"github.com/Sriram-PR/webgrab/pkg/storage"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// doGet fetches rawURL and copies the body to outFile, or to stdout when outFile is empty
func doGet(ctx context.Context, s *scraper.Scraper, rawURL string, headers http.Header, outFile string, stdout io.Writer) error {
	resp, err := s.Get(ctx, rawURL, scraper.WithHeaders(headers))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out := stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("%w: creating '%s': %w", utils.ErrFilesystem, outFile, err)
		}
		defer f.Close()
		out = f
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("%w: %s: %w", utils.ErrResponseBodyRead, rawURL, err)
	}
	return nil
}

// pageOptions selects what doPage prints
type pageOptions struct {
	Selector string
	Attr     string
	Markdown bool
	Headers  http.Header
}

// doPage fetches an HTML page and prints one line per match
func doPage(ctx context.Context, s *scraper.Scraper, rawURL string, opts pageOptions, stdout io.Writer) error {
	doc, err := s.GetPage(ctx, rawURL, scraper.WithHeaders(opts.Headers))
	if err != nil {
		return err
	}

	if opts.Markdown {
		text, err := parse.ToMarkdown(doc, opts.Selector, doc.Url)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, text)
		return nil
	}

	selector := opts.Selector
	if selector == "" {
		selector = "title"
	}
	var lines []string
	if opts.Attr != "" {
		lines = parse.SelectAttr(doc, selector, opts.Attr, doc.Url)
	} else {
		lines = parse.SelectText(doc, selector)
	}
	for _, line := range lines {
		fmt.Fprintln(stdout, line)
	}
	return nil
}

// doSave downloads every URL in turn, printing each local path.
// A failed download is logged and the rest continue; cancellation stops the loop.
func doSave(ctx context.Context, s *scraper.Scraper, urls []string, opts scraper.SaveOptions, stdout io.Writer, log *logrus.Logger) error {
	failed := 0
	for i, rawURL := range urls {
		if ctx.Err() != nil {
			return fmt.Errorf("cancelled after %d of %d downloads: %w", i, len(urls), ctx.Err())
		}
		path, err := s.SaveFile(ctx, rawURL, opts)
		if err != nil {
			failed++
			log.WithFields(logrus.Fields{
				"url":        rawURL,
				"error_type": utils.CategorizeError(err),
			}).Errorf("Download failed: %v", err)
			continue
		}
		fmt.Fprintln(stdout, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(urls))
	}
	return nil
}

// doHistory prints the download history, or exports it as TSV when exportPath is set
func doHistory(ctx context.Context, store storage.HistoryAdmin, exportPath string, gc bool, stdout io.Writer) error {
	if exportPath != "" {
		if err := store.WriteHistory(ctx, exportPath); err != nil {
			return err
		}
		count, _ := store.Count()
		fmt.Fprintf(stdout, "Wrote %d entries to %s\n", count, exportPath)
	} else {
		entries, err := store.ListDownloads(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			when := "-"
			if !e.SavedAt.IsZero() {
				when = humanize.Time(e.SavedAt)
			}
			size := "-"
			if e.Size > 0 {
				size = humanize.IBytes(uint64(e.Size))
			}
			line := fmt.Sprintf("%-8s %-16s %10s  %s -> %s", e.Status, when, size, e.URL, e.LocalPath)
			if e.ErrorType != "" {
				line += " (" + e.ErrorType + ")"
			}
			fmt.Fprintln(stdout, line)
		}
		fmt.Fprintf(stdout, "%d entries\n", len(entries))
	}

	if gc {
		start := time.Now()
		if err := store.CollectGarbage(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Garbage collection finished in %v\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// doLookup prints the history entry recorded for one URL
func doLookup(store storage.DownloadStore, rawURL string, stdout io.Writer) error {
	key, _, err := parse.ParseAndNormalize(rawURL)
	if err != nil {
		return err
	}
	status, e, err := store.LookupDownload(key)
	if err != nil {
		return err
	}
	if status == models.DownloadStatusNotFound {
		return fmt.Errorf("no history for %s", rawURL)
	}

	fmt.Fprintf(stdout, "URL:           %s\n", e.URL)
	fmt.Fprintf(stdout, "Status:        %s (%d attempts, last %s)\n", e.Status, e.Attempts, humanize.Time(e.LastAttempt))
	fmt.Fprintf(stdout, "Path:          %s\n", e.LocalPath)
	if e.ErrorType != "" {
		fmt.Fprintf(stdout, "Error:         %s\n", e.ErrorType)
	}
	if e.FinalURL != "" {
		fmt.Fprintf(stdout, "Final URL:     %s\n", e.FinalURL)
	}
	if e.Referer != "" {
		fmt.Fprintf(stdout, "Referer:       %s\n", e.Referer)
	}
	if e.ETag != "" {
		fmt.Fprintf(stdout, "ETag:          %s\n", e.ETag)
	}
	if e.LastModified != "" {
		fmt.Fprintf(stdout, "Last-Modified: %s\n", e.LastModified)
	}
	if !e.SavedAt.IsZero() {
		fmt.Fprintf(stdout, "Saved:         %s, %s\n", humanize.Time(e.SavedAt), humanize.IBytes(uint64(e.Size)))
	}
	return nil
}

// doCookies lists the cookies of a jar in file order
func doCookies(jar *cookies.Jar, stdout io.Writer) {
	all := jar.All()
	fmt.Fprintf(stdout, "%s (%s, %d cookies)\n", jar.Path(), jar.Format(), len(all))
	for _, c := range all {
		expires := "session"
		if !c.Expires.IsZero() {
			expires = c.Expires.UTC().Format(time.RFC3339)
		}
		flags := ""
		if c.Secure {
			flags += " secure"
		}
		if c.HttpOnly {
			flags += " httponly"
		}
		fmt.Fprintf(stdout, "%-24s %-12s %-20s %s%s\n", c.Domain, c.Path, c.Name, expires, flags)
	}
}

// doAttrs prints the origin tags of each file. Returns exit code.
func doAttrs(paths []string, stdout, stderr io.Writer) int {
	exitCode := 0
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			exitCode = 1
			continue
		}
		attrs, err := fsmeta.ReadAttrs(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			exitCode = 1
			if errors.Is(err, utils.ErrXattrUnsupported) {
				return exitCode
			}
			continue
		}
		fmt.Fprintf(stdout, "%s:\n", path)
		if len(attrs) == 0 {
			fmt.Fprintln(stdout, "  (no tags)")
		}
		for _, name := range fsmeta.AllAttrs {
			if value, ok := attrs[name]; ok {
				fmt.Fprintf(stdout, "  %s: %s\n", name, value)
			}
		}
	}
	return exitCode
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, warnings, err := loadConfig(configPath)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Cache dir:  %s\n", cfg.CacheDir)
	if cfg.OutputDir != "" {
		fmt.Fprintf(stdout, "Output dir: %s\n", cfg.OutputDir)
	}
	if cfg.EnableHistory {
		fmt.Fprintf(stdout, "History:    %s\n", cfg.StateDir)
	} else {
		fmt.Fprintln(stdout, "History:    disabled")
	}
	fmt.Fprintf(stdout, "Retries:    http=%d https=%d\n", cfg.RetriesFor("http"), cfg.RetriesFor("https"))
	fmt.Fprintln(stdout, "Configuration valid")
	return 0
}
