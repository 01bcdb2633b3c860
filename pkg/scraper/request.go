package scraper

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/webgrab/pkg/parse"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// RequestOption adjusts a single request before it is sent
type RequestOption func(*http.Request)

// WithHeader sets one header on the request, replacing the session default of the same name
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) { setHeader(req.Header, key, []string{value}) }
}

// WithHeaders sets every header in h on the request
func WithHeaders(h http.Header) RequestOption {
	return func(req *http.Request) {
		for k, v := range h {
			setHeader(req.Header, k, slices.Clone(v))
		}
	}
}

// setHeader replaces every key equal to key ignoring case. An existing spelling is
// reused so a session header stored verbatim keeps its case on the wire.
func setHeader(h http.Header, key string, values []string) {
	name := http.CanonicalHeaderKey(key)
	for k := range h {
		if strings.EqualFold(k, key) {
			name = k
			delete(h, k)
		}
	}
	h[name] = values
}

// Get fetches rawURL with the session headers and cookies.
// A status of 400 or above is returned as a *fetch.StatusError. The caller closes the body.
func (s *Scraper) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", utils.ErrRequestCreation, rawURL, err)
	}
	for k, v := range s.headers {
		req.Header[k] = slices.Clone(v)
	}
	for _, opt := range opts {
		opt(req)
	}
	return s.fetcher.FetchWithRetry(ctx, req)
}

// GetPage fetches rawURL and parses the body as HTML.
// The body is decoded to UTF-8 using the charset from Content-Type or the document itself.
func (s *Scraper) GetPage(ctx context.Context, rawURL string, opts ...RequestOption) (*goquery.Document, error) {
	resp, err := s.Get(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := parse.ParseDocument(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, utils.WrapErrorf(err, "parsing %s", rawURL)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}
