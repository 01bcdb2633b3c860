package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

const (
	defaultUserAgent  = "webgrab/1.0"
	defaultChunkSize  = 1024
	defaultRetries    = 3
	maxChunkSize      = 16 << 20
	fallbackCacheDir  = "./.webgrab-cache"
	defaultStateDir   = "./webgrab_state"
	cacheDirComponent = "webgrab"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// CacheDir
	if c.CacheDir == "" {
		userCache, cacheErr := os.UserCacheDir()
		if cacheErr != nil {
			warnings = append(warnings, fmt.Sprintf(
				"cache_dir is empty and no user cache directory is available (%v), defaulting to '%s'",
				cacheErr, fallbackCacheDir))
			c.CacheDir = fallbackCacheDir
		} else {
			c.CacheDir = filepath.Join(userCache, cacheDirComponent)
		}
	}

	// StateDir (only needed when history is on)
	if c.EnableHistory && c.StateDir == "" {
		warnings = append(warnings, fmt.Sprintf(
			"enable_history is true but state_dir is empty, defaulting to '%s'", defaultStateDir))
		c.StateDir = defaultStateDir
	}

	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}

	// MaxRetriesPerScheme
	if c.MaxRetriesPerScheme == nil {
		c.MaxRetriesPerScheme = map[string]int{}
	}
	for _, scheme := range []string{"http", "https"} {
		if _, ok := c.MaxRetriesPerScheme[scheme]; !ok {
			c.MaxRetriesPerScheme[scheme] = defaultRetries
		}
	}
	schemes := make([]string, 0, len(c.MaxRetriesPerScheme))
	for scheme := range c.MaxRetriesPerScheme {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes) // stable warning order
	for _, scheme := range schemes {
		if c.MaxRetriesPerScheme[scheme] < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"max_retries_per_scheme[%s] cannot be negative, setting to 0", scheme))
			c.MaxRetriesPerScheme[scheme] = 0
		}
		if scheme != "http" && scheme != "https" {
			warnings = append(warnings, fmt.Sprintf(
				"max_retries_per_scheme has an entry for unsupported scheme '%s', it will be ignored", scheme))
		}
	}

	// Retry delays
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = 1 * time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 30 * time.Second
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, disabling the per-host delay")
		c.DelayPerHost = 0
	}

	// ChunkSize
	if c.ChunkSize < 0 {
		warnings = append(warnings, fmt.Sprintf("chunk_size cannot be negative, defaulting to %d", defaultChunkSize))
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkSize > maxChunkSize {
		return warnings, fmt.Errorf("%w: chunk_size %d exceeds the maximum of %d bytes",
			utils.ErrConfigValidation, c.ChunkSize, maxChunkSize)
	}

	// ProgressStyle
	switch c.ProgressStyle {
	case "":
		c.ProgressStyle = ProgressAuto
	case ProgressAuto, ProgressBar, ProgressSimple:
	default:
		return warnings, fmt.Errorf("%w: progress_style must be one of %q, %q or %q, got %q",
			utils.ErrConfigValidation, ProgressAuto, ProgressBar, ProgressSimple, c.ProgressStyle)
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
// Timeout stays at zero unless set: a whole-request deadline would cut off large downloads.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout < 0 {
		h.Timeout = 0
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
