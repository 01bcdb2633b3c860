package parse

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// ParseDocument decodes an HTML body into a goquery document.
// contentType is the response Content-Type header; its charset parameter (or a
// <meta> declaration in the first bytes of the body) selects the decoder.
func ParseDocument(r io.Reader, contentType string) (*goquery.Document, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML charset detection: %w", utils.ErrParsing, err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// SelectText returns the trimmed text of every node matching selector, in document order
func SelectText(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// SelectAttr returns attr from every node matching selector that carries it.
// When base is non-nil, values are resolved against it as URL references.
func SelectAttr(doc *goquery.Document, selector, attr string, base *url.URL) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		value, ok := s.Attr(attr)
		if !ok {
			return
		}
		value = strings.TrimSpace(value)
		if base != nil {
			if ref, err := url.Parse(value); err == nil {
				value = base.ResolveReference(ref).String()
			}
		}
		out = append(out, value)
	})
	return out
}

// ToMarkdown converts the selected part of doc (the whole document when selector is empty)
// to CommonMark. Relative links are resolved against base when it is non-nil.
func ToMarkdown(doc *goquery.Document, selector string, base *url.URL) (string, error) {
	domain := ""
	if base != nil {
		domain = base.Scheme + "://" + base.Host
	}
	converter := md.NewConverter(domain, true, nil)

	selection := doc.Selection
	if selector != "" {
		selection = doc.Find(selector)
		if selection.Length() == 0 {
			return "", fmt.Errorf("%w: selector %q matched nothing", utils.ErrParsing, selector)
		}
	}

	var parts []string
	selection.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(converter.Convert(s)); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n"), nil
}
