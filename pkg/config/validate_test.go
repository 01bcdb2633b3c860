package config

import (
	"strings"
	"testing"
	"time"

	"github.com/Sriram-PR/webgrab/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.False(t, containsWarning(warnings, "state_dir"))

	// Check defaults applied
	assert.NotEmpty(t, cfg.CacheDir)
	assert.Equal(t, "", cfg.StateDir) // history disabled, no state dir needed
	assert.Equal(t, "webgrab/1.0", cfg.UserAgent)
	assert.Equal(t, map[string]int{"http": 3, "https": 3}, cfg.MaxRetriesPerScheme)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, ProgressAuto, cfg.ProgressStyle)

	// Check HTTP client defaults
	assert.Equal(t, time.Duration(0), cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.HTTPClientSettings.IdleConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.TLSHandshakeTimeout)
	assert.Equal(t, 1*time.Second, cfg.HTTPClientSettings.ExpectContinueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.DialerKeepAlive)
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		OutputDir:           "/output",
		CacheDir:            "/cache",
		StateDir:            "/state",
		EnableHistory:       true,
		UserAgent:           "custom-agent",
		MaxRetriesPerScheme: map[string]int{"http": 1, "https": 5},
		InitialRetryDelay:   2 * time.Second,
		MaxRetryDelay:       60 * time.Second,
		ChunkSize:           64 * 1024,
		ProgressStyle:       ProgressSimple,
		HTTPClientSettings: HTTPClientConfig{
			Timeout:      30 * time.Second,
			MaxIdleConns: 50,
		},
	}

	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	// Values should be preserved
	assert.Equal(t, "/cache", cfg.CacheDir)
	assert.Equal(t, "/state", cfg.StateDir)
	assert.Equal(t, "custom-agent", cfg.UserAgent)
	assert.Equal(t, 1, cfg.RetriesFor("http"))
	assert.Equal(t, 5, cfg.RetriesFor("https"))
	assert.Equal(t, 64*1024, cfg.ChunkSize)
	assert.Equal(t, ProgressSimple, cfg.ProgressStyle)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 50, cfg.HTTPClientSettings.MaxIdleConns)
}

func TestAppConfig_Validate_ExplicitZeroRetriesKept(t *testing.T) {
	cfg := AppConfig{MaxRetriesPerScheme: map[string]int{"http": 0}}

	_, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, 0, cfg.RetriesFor("http"))
	assert.Equal(t, 3, cfg.RetriesFor("https")) // missing scheme filled in
}

func TestAppConfig_Validate_Warnings(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*AppConfig)
		wantWarning string
		check       func(*testing.T, *AppConfig)
	}{
		{
			name: "negative retries",
			setup: func(c *AppConfig) {
				c.MaxRetriesPerScheme = map[string]int{"https": -2}
			},
			wantWarning: "max_retries_per_scheme[https] cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 0, c.RetriesFor("https"))
			},
		},
		{
			name: "unsupported scheme",
			setup: func(c *AppConfig) {
				c.MaxRetriesPerScheme = map[string]int{"ftp": 2}
			},
			wantWarning: "unsupported scheme 'ftp'",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 3, c.RetriesFor("http"))
			},
		},
		{
			name: "history without state dir",
			setup: func(c *AppConfig) {
				c.EnableHistory = true
			},
			wantWarning: "state_dir is empty",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, "./webgrab_state", c.StateDir)
			},
		},
		{
			name: "negative chunk size",
			setup: func(c *AppConfig) {
				c.ChunkSize = -1
			},
			wantWarning: "chunk_size cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 1024, c.ChunkSize)
			},
		},
		{
			name: "negative per-host delay",
			setup: func(c *AppConfig) {
				c.DelayPerHost = -time.Second
			},
			wantWarning: "delay_per_host cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, time.Duration(0), c.DelayPerHost)
			},
		},
		{
			name: "retry delay inversion",
			setup: func(c *AppConfig) {
				c.InitialRetryDelay = 60 * time.Second // Greater than max
				c.MaxRetryDelay = 10 * time.Second
			},
			wantWarning: "initial_retry_delay",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 10*time.Second, c.InitialRetryDelay) // Should be clamped
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{CacheDir: "/cache"}
			tt.setup(&cfg)

			warnings, err := cfg.Validate()

			require.NoError(t, err)
			assert.True(t, containsWarning(warnings, tt.wantWarning),
				"expected warning containing %q, got %v", tt.wantWarning, warnings)
			tt.check(t, &cfg)
		})
	}
}

func TestAppConfig_Validate_FatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		wantErr string
	}{
		{
			name:    "unknown progress style",
			cfg:     AppConfig{ProgressStyle: "fancy"},
			wantErr: "progress_style must be one of",
		},
		{
			name:    "oversized chunk",
			cfg:     AppConfig{ChunkSize: 1 << 30},
			wantErr: "chunk_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// containsWarning checks if any warning contains the substring.
func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
