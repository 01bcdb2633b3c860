package cookies

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	netscapeHeader   = "# Netscape HTTP Cookie File"
	httpOnlyPrefix   = "#HttpOnly_"
	netscapeNumField = 7
)

// parseNetscapeLine parses one tab-separated cookies.txt record:
// domain, include_subdomains, path, secure, expiry, name, value.
// Lines starting with # are comments, except #HttpOnly_ which marks an HttpOnly cookie.
func parseNetscapeLine(line string) (*Cookie, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	httpOnly := false
	if strings.HasPrefix(line, httpOnlyPrefix) {
		httpOnly = true
		line = line[len(httpOnlyPrefix):]
	} else if strings.HasPrefix(line, "#") {
		return nil, nil
	}

	fields := strings.Split(line, "\t")
	if len(fields) != netscapeNumField {
		return nil, fmt.Errorf("expected %d tab-separated fields, got %d", netscapeNumField, len(fields))
	}

	expiry, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry %q: %w", fields[4], err)
	}

	c := &Cookie{
		Domain:        fields[0],
		Subdomains:    strings.EqualFold(fields[1], "TRUE"),
		Path:          fields[2],
		PathSpecified: true,
		Secure:        strings.EqualFold(fields[3], "TRUE"),
		Name:          fields[5],
		Value:         fields[6],
		HttpOnly:      httpOnly,
	}
	c.DomainDot = strings.HasPrefix(c.Domain, ".")
	if expiry > 0 {
		c.Expires = time.Unix(expiry, 0).UTC()
	} else {
		c.Discard = true
	}
	return c, nil
}

func writeNetscape(buf *bytes.Buffer, cookies []*Cookie) {
	buf.WriteString(netscapeHeader)
	buf.WriteByte('\n')
	for _, c := range cookies {
		if c.HttpOnly {
			buf.WriteString(httpOnlyPrefix)
		}
		var expiry int64
		if !c.Expires.IsZero() {
			expiry = c.Expires.Unix()
		}
		fmt.Fprintf(buf, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.Domain, boolField(c.Subdomains), c.Path, boolField(c.Secure), expiry, c.Name, c.Value)
	}
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
