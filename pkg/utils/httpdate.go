package utils

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
)

// RFC 822 named zones. time.Parse only knows these when the local zone
// happens to define them, so the offsets are fixed up after parsing.
var namedZoneOffsets = map[string]int{
	"UT":  0,
	"UTC": 0,
	"GMT": 0,
	"Z":   0,
	"EST": -5 * 3600,
	"EDT": -4 * 3600,
	"CST": -6 * 3600,
	"CDT": -5 * 3600,
	"MST": -7 * 3600,
	"MDT": -6 * 3600,
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
}

// HTTPDateToTime parses an HTTP date header (RFC 1123 / RFC 2822, named or numeric zone).
// Obsolete RFC 850 and asctime forms are accepted as a fallback.
func HTTPDateToTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)

	t, err := mail.ParseDate(text)
	if err != nil {
		if legacy, legacyErr := http.ParseTime(text); legacyErr == nil {
			return legacy.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("%w: invalid HTTP date %q: %w", ErrParsing, text, err)
	}

	name, offset := t.Zone()
	if want, ok := namedZoneOffsets[strings.ToUpper(name)]; ok && want != offset {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
			time.FixedZone(name, want))
	}
	return t.UTC(), nil
}

// HTTPDateToUnix converts an HTTP date header into seconds since the Unix epoch.
func HTTPDateToUnix(text string) (int64, error) {
	t, err := HTTPDateToTime(text)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
