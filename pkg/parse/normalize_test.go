package parse

import (
	"errors"
	"net/url"
	"testing"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

func TestNormalizeURL_NilInput(t *testing.T) {
	result := NormalizeURL(nil)
	if result != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty string", result)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"LowercaseSchemeAndHost", "HTTP://EXAMPLE.COM/Path", "http://example.com/Path"},
		{"DefaultHTTPPort", "http://example.com:80/a", "http://example.com/a"},
		{"DefaultHTTPSPort", "https://example.com:443/a", "https://example.com/a"},
		{"NonDefaultPortKept", "https://example.com:8443/a", "https://example.com:8443/a"},
		{"MismatchedDefaultPortKept", "http://example.com:443/a", "http://example.com:443/a"},
		{"EmptyPath", "https://example.com", "https://example.com/"},
		{"TrailingSlashKept", "https://example.com/dir/", "https://example.com/dir/"},
		{"FragmentRemoved", "https://example.com/a.zip#section", "https://example.com/a.zip"},
		{"QueryKept", "https://example.com/get?id=7", "https://example.com/get?id=7"},
		{"QuerySorted", "https://example.com/get?b=2&a=1", "https://example.com/get?a=1&b=2"},
		{"EmptyQueryDropped", "https://example.com/get?", "https://example.com/get"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q): %v", tt.input, err)
			}
			if got := NormalizeURL(u); got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeURL_DoesNotModifyInput(t *testing.T) {
	u, _ := url.Parse("HTTPS://Example.COM:443/x?b=1&a=2#frag")
	original := u.String()

	_ = NormalizeURL(u)

	if u.String() != original {
		t.Errorf("input modified: got %q, want %q", u.String(), original)
	}
}

func TestParseAndNormalize_ValidURLs(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectedStr string
	}{
		{"SimpleHTTP", "http://example.com/path", "http://example.com/path"},
		{"HTTPSWithPort", "https://example.com:443/page", "https://example.com/page"},
		{"WithQueryAndFragment", "http://example.com/page?q=1#top", "http://example.com/page?q=1"},
		{"RootOnly", "http://example.com", "http://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resultStr, parsedURL, err := ParseAndNormalize(tt.input)
			if err != nil {
				t.Fatalf("ParseAndNormalize(%q) unexpected error: %v", tt.input, err)
			}
			if resultStr != tt.expectedStr {
				t.Errorf("ParseAndNormalize(%q) string = %q, want %q", tt.input, resultStr, tt.expectedStr)
			}
			if parsedURL == nil {
				t.Errorf("ParseAndNormalize(%q) returned nil URL", tt.input)
			}
		})
	}
}

func TestParseAndNormalize_InvalidURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"NoScheme", "example.com/path"},
		{"EmptyString", ""},
		{"RelativeURL", "path/to/page"},
		{"AbsolutePathOnly", "/path/to/page"},
		{"InvalidScheme", "://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resultStr, parsedURL, err := ParseAndNormalize(tt.input)
			if err == nil {
				t.Fatalf("ParseAndNormalize(%q) expected error, got nil", tt.input)
			}
			if !errors.Is(err, utils.ErrParsing) {
				t.Errorf("ParseAndNormalize(%q) error %v does not wrap ErrParsing", tt.input, err)
			}
			if resultStr != "" || parsedURL != nil {
				t.Errorf("ParseAndNormalize(%q) = (%q, %v), want empty results", tt.input, resultStr, parsedURL)
			}
		})
	}
}
