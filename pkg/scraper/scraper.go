// Package scraper is a small HTTP session for fetching pages and downloading files.
// It keeps a persistent cookie jar, skips downloads that already exist on disk,
// shows progress for large transfers and tags saved files with where they came from.
package scraper

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webgrab/pkg/config"
	"github.com/Sriram-PR/webgrab/pkg/cookies"
	"github.com/Sriram-PR/webgrab/pkg/fetch"
	"github.com/Sriram-PR/webgrab/pkg/fsmeta"
	"github.com/Sriram-PR/webgrab/pkg/progress"
	"github.com/Sriram-PR/webgrab/pkg/storage"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// pageSpeedHeader turns off mod_pagespeed rewriting on sites that run it.
// The server matches the name case-sensitively, so it is stored outside http.CanonicalHeaderKey.
const pageSpeedHeader = "PageSpeed"

// Scraper holds the session state shared by every request: headers, cookies and
// the retrying fetcher. It is not safe for concurrent use.
type Scraper struct {
	cfg      *config.AppConfig
	log      *logrus.Entry
	client   *http.Client
	fetcher  *fetch.Fetcher
	headers  http.Header
	jar      *cookies.Jar
	progress progress.Backend
	store    storage.DownloadStore
	attrs    fsmeta.AttrWriter
}

// Option customizes a Scraper at construction time
type Option func(*Scraper)

// WithProgress sets the progress backend used by SaveFile in progress mode.
// The default is chosen from cfg.ProgressStyle and whether stderr is a terminal.
func WithProgress(backend progress.Backend) Option {
	return func(s *Scraper) { s.progress = backend }
}

// WithStore records every SaveFile outcome in store
func WithStore(store storage.DownloadStore) Option {
	return func(s *Scraper) { s.store = store }
}

// WithAttrWriter replaces the filesystem metadata writer
func WithAttrWriter(w fsmeta.AttrWriter) Option {
	return func(s *Scraper) { s.attrs = w }
}

// WithHTTPClient uses client instead of building one from cfg.HTTPClientSettings.
// LoadCookies replaces client.Jar.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) { s.client = client }
}

// New creates a session. cfg should already be validated; nil means config.Default().
// A non-empty cfg.OutputDir is created with its parents.
func New(cfg *config.AppConfig, log *logrus.Entry, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Scraper{
		cfg:   cfg,
		log:   log.WithField("component", "scraper"),
		attrs: fsmeta.FS{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, cfg.OutputDir, err)
		}
	}

	if s.client == nil {
		s.client = fetch.NewClient(cfg.HTTPClientSettings, nil, log.WithField("component", "http_client"))
	}
	s.fetcher = fetch.NewFetcher(s.client, cfg, log.WithField("component", "fetcher"))
	if s.progress == nil {
		s.progress = progress.ForStyle(cfg.ProgressStyle, os.Stderr)
	}

	s.headers = make(http.Header)
	s.headers[pageSpeedHeader] = []string{"off"}
	if cfg.UserAgent != "" {
		s.headers.Set("User-Agent", cfg.UserAgent)
	}
	return s, nil
}

// OutputDir returns the directory created at construction, or "" if none was configured
func (s *Scraper) OutputDir() string {
	return s.cfg.OutputDir
}

// Client returns the HTTP client the session sends requests with
func (s *Scraper) Client() *http.Client {
	return s.client
}

// Headers returns a copy of the headers sent with every request
func (s *Scraper) Headers() http.Header {
	return s.headers.Clone()
}

// --- Cookies ---

// LoadCookies makes the named jar under the cache directory the session's cookie jar.
// A jar file that does not exist yet is not an error: the session starts with no cookies
// and StoreCookies will create the file.
func (s *Scraper) LoadCookies(name string) error {
	path := cookies.PathFor(s.cfg.CacheDir, name)
	s.log.Debugf("loading cookies from %q", path)

	jar, err := cookies.Open(path, s.log)
	if err != nil {
		return err
	}
	s.jar = jar
	s.client.Jar = jar
	return nil
}

// StoreCookies writes the jar loaded by LoadCookies back to its file
func (s *Scraper) StoreCookies() error {
	if s.jar == nil {
		return utils.ErrNoCookieJar
	}
	return s.jar.Save()
}

// Cookies returns the active jar, or nil before LoadCookies
func (s *Scraper) Cookies() *cookies.Jar {
	return s.jar
}
