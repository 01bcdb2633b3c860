// Package fsmeta tags saved files with where they came from: extended attributes
// for the origin URL, referrer and HTTP validators, and the modification time.
package fsmeta

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// Attribute names written for a downloaded file
const (
	AttrOriginURL    = "xdg.origin.url"
	AttrReferrerURL  = "xdg.referrer.url"
	AttrETag         = "http.ETag"
	AttrLastModified = "http.Last-Modified"
)

// AllAttrs lists every attribute a download may carry, in display order
var AllAttrs = []string{AttrOriginURL, AttrReferrerURL, AttrETag, AttrLastModified}

// AttrWriter applies metadata to a file on disk
type AttrWriter interface {
	// SetAttrs writes each non-empty value as an extended attribute.
	// Returns an error wrapping utils.ErrXattrUnsupported when the filesystem has no user xattrs.
	SetAttrs(path string, attrs map[string]string) error
	// SetMtime sets the file's modification time
	SetMtime(path string, mtime time.Time) error
}

// FS is the AttrWriter backed by the local filesystem
type FS struct{}

var _ AttrWriter = FS{}

func (FS) SetAttrs(path string, attrs map[string]string) error {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := setxattr(path, k, attrs[k]); err != nil {
			return err
		}
	}
	return nil
}

func (FS) SetMtime(path string, mtime time.Time) error {
	if err := os.Chtimes(path, time.Now(), mtime); err != nil {
		return fmt.Errorf("%w: setting mtime of '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}

// ReadAttrs returns the named attributes present on path. Absent attributes are left out.
func ReadAttrs(path string, names ...string) (map[string]string, error) {
	if len(names) == 0 {
		names = AllAttrs
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		value, ok, err := getxattr(path, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = value
		}
	}
	return out, nil
}
