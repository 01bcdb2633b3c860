package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// NormalizeURL standardizes a URL for use as a download history key.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// turns an empty path into "/", sorts query parameters and drops the fragment.
// The query is kept: it usually selects which file a URL serves.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" && normalized.Host != "" {
		normalized.Path = "/"
	}

	if normalized.RawQuery != "" {
		normalized.RawQuery = normalized.Query().Encode() // Encode sorts by key
	}
	normalized.ForceQuery = false
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseAndNormalize parses an absolute http(s) URL and normalizes it using NormalizeURL
// Returns the normalized string, the parsed URL object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid URL %q: %w", utils.ErrParsing, urlStr, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", nil, fmt.Errorf("%w: URL %q is not absolute", utils.ErrParsing, urlStr)
	}
	return NormalizeURL(parsed), parsed, nil
}
