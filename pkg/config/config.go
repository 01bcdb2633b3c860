package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// Progress display styles accepted by ProgressStyle
const (
	ProgressAuto   = "auto"   // Full bar on a terminal, plain line otherwise
	ProgressBar    = "bar"    // Always the full bar
	ProgressSimple = "simple" // Always the built-in fallback line
)

// AppConfig holds the global application configuration
type AppConfig struct {
	OutputDir           string           `yaml:"output_dir,omitempty"`
	CacheDir            string           `yaml:"cache_dir,omitempty"` // Cookie files live under <cache_dir>/cookies
	StateDir            string           `yaml:"state_dir,omitempty"` // BadgerDB download history
	EnableHistory       bool             `yaml:"enable_history,omitempty"`
	UserAgent           string           `yaml:"user_agent,omitempty"`
	MaxRetriesPerScheme map[string]int   `yaml:"max_retries_per_scheme,omitempty"` // Connection-level retries only
	InitialRetryDelay   time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay       time.Duration    `yaml:"max_retry_delay,omitempty"`
	DelayPerHost        time.Duration    `yaml:"delay_per_host,omitempty"` // Minimum gap between requests to one host; 0 disables
	ChunkSize           int              `yaml:"chunk_size,omitempty"`     // Read size while streaming a download
	ProgressStyle       string           `yaml:"progress_style,omitempty"`
	HTTPClientSettings  HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout (0 after defaults = none)
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // Tri-state: nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// RetriesFor returns the connection-level retry count for a URL scheme.
// Schemes without an entry get no retries.
func (c *AppConfig) RetriesFor(scheme string) int {
	if c.MaxRetriesPerScheme == nil {
		return 0
	}
	return c.MaxRetriesPerScheme[scheme]
}

// Load reads a YAML config file and unmarshals it. Defaults are not applied; call Validate.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config file '%s': %w", utils.ErrFilesystem, path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return &cfg, nil
}

// Default returns a config with every default applied
func Default() *AppConfig {
	cfg := &AppConfig{}
	_, _ = cfg.Validate() // zero value never fails
	return cfg
}
