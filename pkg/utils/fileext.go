package utils

import "strings"

// FileExt derives a local file suffix (without the leading dot) from a URL.
// Query strings and fragments are ignored, directory-style URLs map to "html",
// compound tar suffixes are kept whole ("tar.gz") and dot-less names map to "bin".
func FileExt(rawURL string) string {
	// throw away fragment and query
	if i := strings.Index(rawURL, "#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	if i := strings.Index(rawURL, "?"); i >= 0 {
		rawURL = rawURL[:i]
	}

	if strings.HasSuffix(rawURL, "/") {
		return "html"
	}

	base := rawURL[strings.LastIndex(rawURL, "/")+1:]
	parts := strings.Split(base, ".")
	switch {
	case len(parts) >= 3 && parts[len(parts)-2] == "tar":
		return "tar." + parts[len(parts)-1]
	case len(parts) >= 2:
		return parts[len(parts)-1]
	default:
		return "bin"
	}
}
