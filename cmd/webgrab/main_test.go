package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/webgrab/pkg/config"
	"github.com/Sriram-PR/webgrab/pkg/models"
	"github.com/Sriram-PR/webgrab/pkg/scraper"
	"github.com/Sriram-PR/webgrab/pkg/storage"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.ProgressStyle = config.ProgressSimple
	return cfg
}

func testSession(t *testing.T) *scraper.Scraper {
	t.Helper()
	s, err := newSession(testConfig(t), quietLogger(), "", "", nil)
	require.NoError(t, err)
	return s
}

const testPage = `<html><head><title>Downloads</title></head><body>
<main><h1>Files</h1><a class="dl" href="/files/a.zip">A</a> <a class="dl" href="b.zip">B</a></main>
</body></html>`

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, testPage)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Header.Get("X-Token"))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data for "+r.URL.Path)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// --- Config ---

func TestLoadConfig_ValidFile(t *testing.T) {
	content := `
output_dir: "./downloads"
cache_dir: "./cache"
user_agent: "test-agent"
max_retries_per_scheme:
  https: 5
chunk_size: 4096
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, warnings, err := loadConfig(cfgPath)

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "./downloads", cfg.OutputDir)
	assert.Equal(t, "test-agent", cfg.UserAgent)
	assert.Equal(t, 5, cfg.RetriesFor("https"))
	assert.Equal(t, 3, cfg.RetriesFor("http"))
	assert.Equal(t, 4096, cfg.ChunkSize)
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	cfg, _, err := loadConfig("")

	require.NoError(t, err)
	assert.NotEmpty(t, cfg.CacheDir)
	assert.Equal(t, config.ProgressAuto, cfg.ProgressStyle)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, _, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFilesystem)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644))

	_, _, err := loadConfig(cfgPath)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestDoValidate_Valid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("enable_history: true\nstate_dir: /tmp/wg\n"), 0644))

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "History:    /tmp/wg")
	assert.Contains(t, stdout.String(), "Configuration valid")
	assert.Empty(t, stderr.String())
}

func TestDoValidate_Warnings(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_retries_per_scheme:\n  ftp: 2\n"), 0644))

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "WARN: max_retries_per_scheme has an entry for unsupported scheme 'ftp'")
}

func TestDoValidate_Invalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("progress_style: fancy\n"), 0644))

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "ERROR")
	assert.Contains(t, stderr.String(), "progress_style")
}

func TestDoValidate_ConfigNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("/nonexistent.yaml", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "ERROR")
}

// --- Flags ---

func TestHeaderFlags(t *testing.T) {
	h := headerFlags{}
	require.NoError(t, h.Set("X-Token: abc"))
	require.NoError(t, h.Set("accept:text/html"))
	assert.Error(t, h.Set("no-colon"))
	assert.Error(t, h.Set(": empty-name"))

	assert.Equal(t, "abc", http.Header(h).Get("X-Token"))
	assert.Equal(t, "text/html", http.Header(h).Get("Accept"))
}

// --- Commands ---

func TestDoGet_Stdout(t *testing.T) {
	server := newSiteServer(t)
	s := testSession(t)

	var stdout bytes.Buffer
	headers := http.Header{"X-Token": {"secret"}}
	err := doGet(context.Background(), s, server.URL+"/echo", headers, "", &stdout)

	require.NoError(t, err)
	assert.Equal(t, "secret", stdout.String())
}

func TestDoGet_File(t *testing.T) {
	server := newSiteServer(t)
	s := testSession(t)
	outFile := filepath.Join(t.TempDir(), "body.txt")

	var stdout bytes.Buffer
	err := doGet(context.Background(), s, server.URL+"/files/x", nil, outFile, &stdout)

	require.NoError(t, err)
	assert.Empty(t, stdout.String())
	data, _ := os.ReadFile(outFile)
	assert.Equal(t, "data for /files/x", string(data))
}

func TestDoGet_NotFound(t *testing.T) {
	server := newSiteServer(t)
	s := testSession(t)

	err := doGet(context.Background(), s, server.URL+"/nope", nil, "", io.Discard)
	assert.ErrorIs(t, err, utils.ErrClientHTTPError)
}

func TestDoPage(t *testing.T) {
	server := newSiteServer(t)
	s := testSession(t)
	pageURL := server.URL + "/index.html"

	tests := []struct {
		name     string
		opts     pageOptions
		expected []string
	}{
		{"DefaultTitle", pageOptions{}, []string{"Downloads"}},
		{"SelectText", pageOptions{Selector: "a.dl"}, []string{"A", "B"}},
		{"SelectAttr", pageOptions{Selector: "a.dl", Attr: "href"}, []string{server.URL + "/files/a.zip", server.URL + "/b.zip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			require.NoError(t, doPage(context.Background(), s, pageURL, tt.opts, &stdout))
			assert.Equal(t, tt.expected, strings.Split(strings.TrimSpace(stdout.String()), "\n"))
		})
	}
}

func TestDoPage_Markdown(t *testing.T) {
	server := newSiteServer(t)
	s := testSession(t)

	var stdout bytes.Buffer
	err := doPage(context.Background(), s, server.URL+"/index.html", pageOptions{Selector: "main", Markdown: true}, &stdout)

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "# Files")
	assert.Contains(t, stdout.String(), "[A]("+server.URL+"/files/a.zip)")
}

func TestDoSave_ContinuesAfterFailure(t *testing.T) {
	server := newSiteServer(t)
	s := testSession(t)
	dir := t.TempDir()

	var stdout bytes.Buffer
	err := doSave(context.Background(), s,
		[]string{server.URL + "/files/one.txt", server.URL + "/missing.txt", server.URL + "/files/two.txt"},
		scraper.SaveOptions{OutputDir: dir}, &stdout, quietLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 downloads failed")
	assert.Equal(t, filepath.Join(dir, "one.txt")+"\n"+filepath.Join(dir, "two.txt")+"\n", stdout.String())
	assert.FileExists(t, filepath.Join(dir, "one.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "missing.txt"))
}

func TestDoSave_Cancelled(t *testing.T) {
	server := newSiteServer(t)
	s := testSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := doSave(ctx, s, []string{server.URL + "/files/one.txt"}, scraper.SaveOptions{OutputDir: t.TempDir()}, io.Discard, quietLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoSave_CookiesPersist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "visited", Value: "yes", Path: "/", Expires: time.Now().Add(time.Hour)})
		io.WriteString(w, "payload")
	}))
	defer server.Close()

	cfg := testConfig(t)
	log := quietLogger()
	s, err := newSession(cfg, log, "site", "", nil)
	require.NoError(t, err)

	require.NoError(t, doSave(context.Background(), s, []string{server.URL + "/f.bin"},
		scraper.SaveOptions{OutputDir: t.TempDir()}, io.Discard, log))
	finishSession(s, log)

	data, err := os.ReadFile(filepath.Join(cfg.CacheDir, "cookies", "site.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "visited=yes")
}

func TestNewSession_CookieFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "visited", Value: "yes", Path: "/", Expires: time.Now().Add(time.Hour)})
	}))
	defer server.Close()

	cfg := testConfig(t)
	log := quietLogger()
	s, err := newSession(cfg, log, "site", "netscape", nil)
	require.NoError(t, err)

	require.NoError(t, doGet(context.Background(), s, server.URL+"/", nil, "", io.Discard))
	finishSession(s, log)

	data, err := os.ReadFile(filepath.Join(cfg.CacheDir, "cookies", "site.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Netscape HTTP Cookie File\n"))
	assert.Contains(t, string(data), "\tvisited\tyes\n")

	var stdout bytes.Buffer
	reopened, err := newSession(cfg, log, "site", "", nil)
	require.NoError(t, err)
	doCookies(reopened.Cookies(), &stdout)
	out := stdout.String()
	assert.Contains(t, out, "(netscape, 1 cookies)")
	assert.Contains(t, out, "visited")
}

func TestNewSession_CookieFormatErrors(t *testing.T) {
	_, err := newSession(testConfig(t), quietLogger(), "site", "json", nil)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)

	_, err = newSession(testConfig(t), quietLogger(), "", "lwp", nil)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestDoCookies_Empty(t *testing.T) {
	cfg := testConfig(t)
	s, err := newSession(cfg, quietLogger(), "fresh", "", nil)
	require.NoError(t, err)

	var stdout bytes.Buffer
	doCookies(s.Cookies(), &stdout)
	assert.Equal(t, filepath.Join(cfg.CacheDir, "cookies", "fresh.txt")+" (lwp, 0 cookies)\n", stdout.String())
}

func TestOpenHistory_Disabled(t *testing.T) {
	store, err := openHistory(testConfig(t), quietLogger())
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestDoHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableHistory = true
	cfg.StateDir = t.TempDir()

	store, err := openHistory(cfg, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	require.NoError(t, store.RecordDownload("https://example.com/a.iso", &models.DownloadEntry{
		URL: "https://example.com/a.iso", LocalPath: "a.iso", Size: 3 * 1024 * 1024,
		Status: models.DownloadStatusSuccess, SavedAt: now, LastAttempt: now,
	}))
	require.NoError(t, store.RecordDownload("https://example.com/b.iso", &models.DownloadEntry{
		URL: "https://example.com/b.iso", LocalPath: "b.iso",
		Status: models.DownloadStatusFailure, ErrorType: "HTTP_404", LastAttempt: now,
	}))

	var stdout bytes.Buffer
	require.NoError(t, doHistory(context.Background(), store, "", true, &stdout))

	out := stdout.String()
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "3.0 MiB")
	assert.Contains(t, out, "https://example.com/a.iso -> a.iso")
	assert.Contains(t, out, "(HTTP_404)")
	assert.Contains(t, out, "2 entries")
	assert.Contains(t, out, "Garbage collection finished")

	exportPath := filepath.Join(t.TempDir(), "history.tsv")
	stdout.Reset()
	require.NoError(t, doHistory(context.Background(), store, exportPath, false, &stdout))
	assert.Contains(t, stdout.String(), "Wrote 2 entries")
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestDoLookup(t *testing.T) {
	store, err := storage.NewBadgerStore(t.TempDir(), logrus.NewEntry(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	require.NoError(t, store.RecordDownload("https://example.com/a.iso?x=1&y=2", &models.DownloadEntry{
		URL: "https://example.com/a.iso?y=2&x=1", FinalURL: "https://mirror.example.com/a.iso",
		LocalPath: "a.iso", ETag: `"abc"`, Size: 2048,
		Status: models.DownloadStatusSuccess, SavedAt: now, LastAttempt: now,
	}))

	var stdout bytes.Buffer
	require.NoError(t, doLookup(store, "HTTPS://Example.com:443/a.iso?y=2&x=1#top", &stdout))
	out := stdout.String()
	assert.Contains(t, out, "Status:        success (1 attempts")
	assert.Contains(t, out, "Final URL:     https://mirror.example.com/a.iso")
	assert.Contains(t, out, `ETag:          "abc"`)
	assert.Contains(t, out, "2.0 KiB")
	assert.NotContains(t, out, "Referer:")

	err = doLookup(store, "https://example.com/other.iso", io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no history for")

	err = doLookup(store, "not a url", io.Discard)
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestDoHistory_ExportBadPath(t *testing.T) {
	store, err := storage.NewBadgerStore(t.TempDir(), logrus.NewEntry(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	err = doHistory(context.Background(), store, filepath.Join(t.TempDir(), "no", "such", "dir.tsv"), false, io.Discard)
	assert.ErrorIs(t, err, utils.ErrFilesystem)
}

func TestDoAttrs_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doAttrs([]string{filepath.Join(t.TempDir(), "absent")}, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error")
}

func TestDoAttrs_UntaggedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	var stdout, stderr bytes.Buffer
	exitCode := doAttrs([]string{path}, &stdout, &stderr)

	if strings.Contains(stderr.String(), utils.ErrXattrUnsupported.Error()) {
		t.Skip("filesystem has no extended attributes")
	}
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "(no tags)")
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"get", "page", "save", "history", "attrs", "cookies", "validate", "version"} {
		assert.Contains(t, out, cmd)
	}
}
