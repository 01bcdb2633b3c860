package cookies

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	lwpHeader     = "#LWP-Cookies-2.0"
	lwpLinePrefix = "Set-Cookie3:"
	lwpTimeLayout = "2006-01-02 15:04:05Z"
)

// parseLWPLine parses one `Set-Cookie3: name=value; path="/"; ...` record.
// Blank and comment lines return a nil cookie and no error.
func parseLWPLine(line string) (*Cookie, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}
	rest, ok := strings.CutPrefix(trimmed, lwpLinePrefix)
	if !ok {
		return nil, fmt.Errorf("missing %q prefix", lwpLinePrefix)
	}

	attrs, err := splitHeaderWords(rest)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 || !attrs[0].HasValue {
		return nil, errors.New("missing name=value pair")
	}

	c := &Cookie{Name: attrs[0].Key, Value: attrs[0].Value}
	for _, a := range attrs[1:] {
		switch strings.ToLower(a.Key) {
		case "path":
			c.Path = a.Value
		case "domain":
			c.Domain = a.Value
		case "path_spec":
			c.PathSpecified = true
		case "domain_dot":
			c.DomainDot = true
		case "secure":
			c.Secure = true
		case "discard":
			c.Discard = true
		case "expires":
			t, err := time.Parse(lwpTimeLayout, a.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid expires %q: %w", a.Value, err)
			}
			c.Expires = t
		case "version":
			v, err := strconv.Atoi(a.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid version %q: %w", a.Value, err)
			}
			c.Version = v
		case "httponly":
			c.HttpOnly = true
		default:
			c.Extra = append(c.Extra, a)
		}
	}
	if c.Domain == "" {
		return nil, errors.New("missing domain")
	}
	if c.Path == "" {
		c.Path = "/"
	}
	c.Subdomains = strings.HasPrefix(c.Domain, ".")
	return c, nil
}

// writeLWP serializes cookies with the same attribute order the libwww-perl format uses
func writeLWP(buf *bytes.Buffer, cookies []*Cookie) {
	buf.WriteString(lwpHeader)
	buf.WriteByte('\n')
	for _, c := range cookies {
		buf.WriteString(lwpLinePrefix)
		buf.WriteByte(' ')
		buf.WriteString(formatLWP(c))
		buf.WriteByte('\n')
	}
}

func formatLWP(c *Cookie) string {
	attrs := []Attr{
		{Key: c.Name, Value: c.Value, HasValue: true},
		{Key: "path", Value: c.Path, HasValue: true},
		{Key: "domain", Value: c.Domain, HasValue: true},
	}
	if c.PathSpecified {
		attrs = append(attrs, Attr{Key: "path_spec"})
	}
	if c.DomainDot {
		attrs = append(attrs, Attr{Key: "domain_dot"})
	}
	if c.Secure {
		attrs = append(attrs, Attr{Key: "secure"})
	}
	if !c.Expires.IsZero() {
		attrs = append(attrs, Attr{Key: "expires", Value: c.Expires.UTC().Format(lwpTimeLayout), HasValue: true})
	}
	if c.Discard {
		attrs = append(attrs, Attr{Key: "discard"})
	}

	rest := append([]Attr(nil), c.Extra...)
	if c.HttpOnly {
		rest = append(rest, Attr{Key: "HttpOnly", Value: "None", HasValue: true})
	}
	sort.SliceStable(rest, func(a, b int) bool { return rest[a].Key < rest[b].Key })
	attrs = append(attrs, rest...)
	attrs = append(attrs, Attr{Key: "version", Value: strconv.Itoa(c.Version), HasValue: true})

	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if !a.HasValue {
			parts = append(parts, a.Key)
			continue
		}
		parts = append(parts, a.Key+"="+quoteWord(a.Value))
	}
	return strings.Join(parts, "; ")
}

// quoteWord leaves word characters bare and quotes everything else
func quoteWord(v string) string {
	if v != "" && strings.IndexFunc(v, func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	}) < 0 {
		return v
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range v {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

// splitHeaderWords parses `k=v; k="quoted"; flag` into attributes
func splitHeaderWords(s string) ([]Attr, error) {
	var attrs []Attr
	i := 0
	for i < len(s) {
		// skip separators
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == ';') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && s[i] != '=' && s[i] != ';' {
			i++
		}
		a := Attr{Key: strings.TrimSpace(s[start:i])}
		if a.Key == "" {
			return nil, fmt.Errorf("empty attribute name at offset %d", start)
		}

		if i < len(s) && s[i] == '=' {
			i++
			for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			a.HasValue = true
			if i < len(s) && s[i] == '"' {
				i++
				var sb strings.Builder
				closed := false
				for i < len(s) {
					ch := s[i]
					if ch == '\\' && i+1 < len(s) {
						sb.WriteByte(s[i+1])
						i += 2
						continue
					}
					if ch == '"' {
						closed = true
						i++
						break
					}
					sb.WriteByte(ch)
					i++
				}
				if !closed {
					return nil, fmt.Errorf("unterminated quoted value for %q", a.Key)
				}
				a.Value = sb.String()
			} else {
				vstart := i
				for i < len(s) && s[i] != ';' {
					i++
				}
				a.Value = strings.TrimSpace(s[vstart:i])
			}
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}
