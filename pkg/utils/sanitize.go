package utils

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix filenames
var consecutiveUnderscores = regexp.MustCompile(`_+`)                  // Pattern to replace multiple underscores with one
const maxFilenameLength = 200                                          // Max length for sanitized filenames, leaves room for ".<name>.part"

// SanitizeFilename cleans a string to be safe for use as a filename component.
// When the name has to be truncated the extension is kept.
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxFilenameLength {
		ext := path.Ext(sanitized)
		if len(ext) >= maxFilenameLength/2 {
			ext = ""
		}
		stem := strings.TrimRight(sanitized[:maxFilenameLength-len(ext)], "_ .")
		sanitized = stem + ext
	}

	// "." and ".." would resolve to directories
	if sanitized == "" || strings.Trim(sanitized, ".") == "" {
		sanitized = "untitled"
	}
	return sanitized
}

// FilenameFromURL returns the local name a download of rawURL is saved under
// when the caller does not choose one: the last path segment, percent-decoded
// and sanitized. Directory-style URLs are saved as "index.<ext>".
func FilenameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.EscapedPath()
	}
	if p == "" {
		return "index.html"
	}
	if strings.HasSuffix(p, "/") {
		return "index." + FileExt(rawURL)
	}

	base := path.Base(p)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return SanitizeFilename(base)
}
