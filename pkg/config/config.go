package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// AppConfig holds the global application configuration
type AppConfig struct {
	LogLevel           string            `yaml:"log_level,omitempty"`
	Headers            map[string]string `yaml:"headers,omitempty"` // Replaces DefaultHeaders when set
	Proxies            ProxyConfig       `yaml:"proxies"`
	UserAgents         UserAgentConfig   `yaml:"user_agents"`
	Delay              DelayConfig       `yaml:"delay"`
	MaxBodyBytes       int64             `yaml:"max_body_bytes,omitempty"` // 0 = unlimited
	MaxRequestsPerHost int               `yaml:"max_requests_per_host,omitempty"`
	HTTPClientSettings HTTPClientConfig  `yaml:"http_client_settings,omitempty"`
	Download           DownloadConfig    `yaml:"download"`
}

// ProxyConfig describes where the proxy pool comes from and how it rotates
type ProxyConfig struct {
	Source         string   `yaml:"source,omitempty"`          // file://, http(s):// or comma-separated proxies
	List           []string `yaml:"list,omitempty"`            // Inline entries, take precedence over Source
	SchemeFallback string   `yaml:"scheme_fallback,omitempty"` // Scheme for entries without one
	Rotation       string   `yaml:"rotation,omitempty"`        // no_proxy, keep, next, random
	InvalidEntries string   `yaml:"invalid_entries,omitempty"` // keep or drop
}

// UserAgentConfig selects the user-agent dataset
type UserAgentConfig struct {
	Path string `yaml:"path,omitempty"`
	Keep *int   `yaml:"keep,omitempty"` // nil = 50, 0 = keep all
}

// DelayConfig is the per-host politeness delay range
type DelayConfig struct {
	Min time.Duration `yaml:"min,omitempty"`
	Max time.Duration `yaml:"max,omitempty"`
}

// DownloadConfig controls file downloads
type DownloadConfig struct {
	OutputDir    string `yaml:"output_dir,omitempty"`
	StateDir     string `yaml:"state_dir,omitempty"` // Badger ledger location; empty disables the ledger
	Concurrency  int    `yaml:"concurrency,omitempty"`
	SkipExisting bool   `yaml:"skip_existing,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	InsecureSkipVerify    bool          `yaml:"insecure_skip_verify,omitempty"`    // Many free proxies intercept TLS
}

// DefaultHeaders are sent with every request unless AppConfig.Headers is set.
// Accept-Encoding is left to the transport so responses are decompressed transparently.
var DefaultHeaders = map[string]string{
	"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9," +
		"image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9",
	"Accept-Language":           "en",
	"Upgrade-Insecure-Requests": "1",
}

// Load reads a YAML file into an AppConfig. A missing file yields a zero config
// when allowMissing is set. Defaults are not applied; call Validate.
func Load(path string, allowMissing bool) (*AppConfig, error) {
	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: reading config %s: %w", utils.ErrFilesystem, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: YAML config %s: %w", utils.ErrParsing, path, err)
	}
	return cfg, nil
}

// EffectiveHeaders returns the configured headers or a copy of DefaultHeaders.
func (c *AppConfig) EffectiveHeaders() map[string]string {
	src := c.Headers
	if len(src) == 0 {
		src = DefaultHeaders
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// EffectiveKeep returns the user-agent sample size.
func (c *AppConfig) EffectiveKeep() int {
	if c.UserAgents.Keep == nil {
		return 50
	}
	return *c.UserAgents.Keep
}
