// Package cookies implements a file-backed http.CookieJar.
//
// Domain matching and cookie selection are delegated to net/http/cookiejar with the
// public suffix list. Alongside it the Jar keeps its own ordered record of every
// cookie so the set can be written back to disk: the in-memory jar is the source of
// truth until Save is called.
//
// Two line-oriented formats are understood: the libwww-perl "Set-Cookie3" format
// (the default for new files) and the Netscape cookies.txt format. A jar is saved in
// the format it was loaded from.
package cookies

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// Format identifies an on-disk cookie file layout
type Format int

const (
	FormatLWP Format = iota
	FormatNetscape
)

func (f Format) String() string {
	switch f {
	case FormatLWP:
		return "lwp"
	case FormatNetscape:
		return "netscape"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a format name ("lwp" or "netscape") to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lwp":
		return FormatLWP, nil
	case "netscape":
		return FormatNetscape, nil
	default:
		return 0, fmt.Errorf("%w: unknown cookie file format %q (want lwp or netscape)", utils.ErrConfigValidation, name)
	}
}

// Cookie is one persisted cookie record
type Cookie struct {
	Name  string
	Value string
	// Domain as stored; a leading dot marks a domain cookie
	Domain string
	// Subdomains reports whether the cookie is sent to subdomains of Domain
	Subdomains    bool
	Path          string
	PathSpecified bool
	DomainDot     bool // the Domain attribute was sent with a leading dot
	Secure        bool
	HttpOnly      bool
	Expires       time.Time // zero for session cookies
	Discard       bool
	Version       int
	Extra         []Attr // unrecognized attributes, kept for round-trip
}

// Attr is an attribute of a Set-Cookie3 record
type Attr struct {
	Key      string
	Value    string
	HasValue bool
}

type recordKey struct {
	domain, path, name string
}

func (c *Cookie) key() recordKey {
	return recordKey{domain: c.Domain, path: c.Path, name: c.Name}
}

func (c *Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// Jar is an http.CookieJar bound to a file
type Jar struct {
	path   string
	format Format
	log    *logrus.Entry

	mu      sync.Mutex
	inner   *cookiejar.Jar
	records []*Cookie
	index   map[recordKey]int
}

var _ http.CookieJar = (*Jar)(nil)

// PathFor returns the cookie file path for a named jar under cacheDir
func PathFor(cacheDir, name string) string {
	return filepath.Join(cacheDir, "cookies", name+".txt")
}

// New returns an empty jar that will be saved to path
func New(path string, log *logrus.Entry) (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Jar{
		path:   path,
		format: FormatLWP,
		log:    log.WithField("cookie_file", path),
		inner:  inner,
		index:  make(map[recordKey]int),
	}, nil
}

// Open creates the parent directory of path, then loads the jar from path.
// A missing file yields an empty jar.
func Open(path string, log *logrus.Entry) (*Jar, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating cookie directory '%s': %w", utils.ErrFilesystem, filepath.Dir(path), err)
	}

	j, err := New(path, log)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			j.log.Debug("cookie file does not exist, starting with an empty jar")
			return j, nil
		}
		return nil, fmt.Errorf("%w: reading cookie file '%s': %w", utils.ErrFilesystem, path, err)
	}

	if err := j.load(data, time.Now()); err != nil {
		return nil, err
	}
	j.log.WithField("count", len(j.records)).Debug("loaded cookies")
	return j, nil
}

// Path returns the backing file path
func (j *Jar) Path() string {
	return j.path
}

// Format returns the format Save will write
func (j *Jar) Format() Format {
	return j.format
}

// SetFormat changes the format Save will write
func (j *Jar) SetFormat(f Format) {
	j.format = f
}

// Len returns the number of stored cookies
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// All returns a copy of the stored cookies in file order
func (j *Jar) All() []Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Cookie, 0, len(j.records))
	for _, rec := range j.records {
		out = append(out, *rec)
	}
	return out
}

// Cookies implements http.CookieJar
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// SetCookies implements http.CookieJar
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, hc := range cookies {
		rec, ok := recordFromHTTP(u, hc, now)
		if !ok {
			continue
		}
		if hc.MaxAge < 0 || rec.expired(now) {
			j.remove(rec.key())
			continue
		}
		j.upsert(rec)
	}
}

// Save writes the jar to its file, replacing it atomically.
// Expired cookies are not written.
func (j *Jar) Save() error {
	j.mu.Lock()
	var buf bytes.Buffer
	now := time.Now()
	live := make([]*Cookie, 0, len(j.records))
	for _, rec := range j.records {
		if !rec.expired(now) {
			live = append(live, rec)
		}
	}
	switch j.format {
	case FormatNetscape:
		writeNetscape(&buf, live)
	default:
		writeLWP(&buf, live)
	}
	j.mu.Unlock()

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating cookie directory '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".cookies-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp cookie file in '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing cookie file '%s': %w", utils.ErrFilesystem, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing cookie file '%s': %w", utils.ErrFilesystem, tmpName, err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		return fmt.Errorf("%w: replacing cookie file '%s': %w", utils.ErrFilesystem, j.path, err)
	}
	j.log.WithField("count", len(live)).Debug("stored cookies")
	return nil
}

// load parses data, detecting the format from its first line
func (j *Jar) load(data []byte, now time.Time) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	first := true
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			if strings.TrimSpace(line) == "" {
				continue
			}
			first = false
			switch {
			case strings.HasPrefix(line, lwpHeader):
				j.format = FormatLWP
				continue
			case strings.HasPrefix(line, "# Netscape HTTP Cookie File"), strings.HasPrefix(line, "# HTTP Cookie File"):
				j.format = FormatNetscape
				continue
			default:
				return fmt.Errorf("%w: cookie file '%s' has an unrecognized header %q", utils.ErrParsing, j.path, line)
			}
		}

		var (
			rec *Cookie
			err error
		)
		switch j.format {
		case FormatNetscape:
			rec, err = parseNetscapeLine(line)
		default:
			rec, err = parseLWPLine(line)
		}
		if err != nil {
			j.log.WithField("line", lineNo).Warnf("Skipping malformed cookie line: %v", err)
			continue
		}
		if rec == nil || rec.expired(now) {
			continue
		}
		j.upsert(rec)
		j.inner.SetCookies(rec.originURL(), []*http.Cookie{rec.httpCookie()})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading cookie file '%s': %w", utils.ErrParsing, j.path, err)
	}
	return nil
}

func (j *Jar) upsert(rec *Cookie) {
	k := rec.key()
	if i, ok := j.index[k]; ok {
		j.records[i] = rec
		return
	}
	j.index[k] = len(j.records)
	j.records = append(j.records, rec)
}

func (j *Jar) remove(k recordKey) {
	i, ok := j.index[k]
	if !ok {
		return
	}
	j.records = append(j.records[:i], j.records[i+1:]...)
	delete(j.index, k)
	for n := i; n < len(j.records); n++ {
		j.index[j.records[n].key()] = n
	}
}

// originURL is a URL the cookie would have been set from
func (c *Cookie) originURL() *url.URL {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: strings.TrimPrefix(c.Domain, "."), Path: c.Path}
}

func (c *Cookie) httpCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	if c.Subdomains {
		hc.Domain = strings.TrimPrefix(c.Domain, ".")
	}
	if !c.Expires.IsZero() {
		hc.Expires = c.Expires
	}
	return hc
}

// recordFromHTTP applies RFC 6265 domain and path defaults to a received cookie.
// ok is false when the cookie would be rejected for u.
func recordFromHTTP(u *url.URL, hc *http.Cookie, now time.Time) (*Cookie, bool) {
	if hc.Name == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, false
	}

	rec := &Cookie{
		Name:     hc.Name,
		Value:    hc.Value,
		Domain:   host,
		Secure:   hc.Secure,
		HttpOnly: hc.HttpOnly,
	}

	if hc.Domain != "" {
		domain := strings.ToLower(hc.Domain)
		rec.DomainDot = strings.HasPrefix(domain, ".")
		domain = strings.TrimPrefix(domain, ".")
		switch {
		case domain == host && (net.ParseIP(host) != nil || isPublicSuffix(domain)):
			// host-only
		case net.ParseIP(host) != nil, !domainMatch(host, domain), isPublicSuffix(domain):
			return nil, false
		default:
			rec.Domain = "." + domain
			rec.Subdomains = true
		}
	}

	if strings.HasPrefix(hc.Path, "/") {
		rec.Path = hc.Path
		rec.PathSpecified = true
	} else {
		rec.Path = defaultPath(u.Path)
	}

	switch {
	case hc.MaxAge > 0:
		rec.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second).Truncate(time.Second)
	case hc.MaxAge < 0:
		rec.Expires = time.Unix(0, 0)
	case !hc.Expires.IsZero():
		rec.Expires = hc.Expires.Truncate(time.Second)
	default:
		rec.Discard = true
	}
	return rec, true
}

func isPublicSuffix(domain string) bool {
	ps, _ := publicsuffix.PublicSuffix(domain)
	return ps == domain
}

func domainMatch(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// defaultPath implements the default-path algorithm of RFC 6265 section 5.1.4
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
