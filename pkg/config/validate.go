package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/proxypool"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// LogLevel
	if c.LogLevel == "" {
		c.LogLevel = "info"
	} else if _, perr := logrus.ParseLevel(c.LogLevel); perr != nil {
		warnings = append(warnings, fmt.Sprintf("log_level %q is not a logrus level, defaulting to 'info'", c.LogLevel))
		c.LogLevel = "info"
	}

	if err := c.validateProxies(&warnings); err != nil {
		return warnings, err
	}

	// UserAgents
	if c.UserAgents.Keep != nil && *c.UserAgents.Keep < 0 {
		warnings = append(warnings, "user_agents.keep cannot be negative, defaulting to 50")
		keep := 50
		c.UserAgents.Keep = &keep
	}

	// Delay
	if c.Delay.Min < 0 {
		warnings = append(warnings, "delay.min cannot be negative, setting to 0")
		c.Delay.Min = 0
	}
	if c.Delay.Max < c.Delay.Min {
		if c.Delay.Max != 0 {
			warnings = append(warnings, fmt.Sprintf(
				"delay.max (%v) < delay.min (%v), using delay.min for both", c.Delay.Max, c.Delay.Min))
		}
		c.Delay.Max = c.Delay.Min
	}

	// MaxBodyBytes
	if c.MaxBodyBytes < 0 {
		warnings = append(warnings, "max_body_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxBodyBytes = 0
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		if c.MaxRequestsPerHost < 0 {
			warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 2")
		}
		c.MaxRequestsPerHost = 2
	}

	// Download
	if c.Download.OutputDir == "" {
		c.Download.OutputDir = "."
	}
	if c.Download.Concurrency <= 0 {
		if c.Download.Concurrency < 0 {
			warnings = append(warnings, "download.concurrency should be > 0, defaulting to 4")
		}
		c.Download.Concurrency = 4
	}
	if c.Download.SkipExisting && c.Download.StateDir == "" {
		warnings = append(warnings,
			"download.skip_existing is true but download.state_dir is empty. Defaulting to './scrapinghelper_state'")
		c.Download.StateDir = "./scrapinghelper_state"
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

func (c *AppConfig) validateProxies(warnings *[]string) error {
	p := &c.Proxies
	if p.SchemeFallback == "" {
		p.SchemeFallback = descriptor.DefaultSchemeFallback
	}
	p.SchemeFallback = strings.ToLower(p.SchemeFallback)
	if !descriptor.IsSupportedProxyScheme(p.SchemeFallback) {
		return fmt.Errorf("%w: proxies.scheme_fallback: %w %q",
			utils.ErrConfigValidation, utils.ErrUnsupportedProxyScheme, p.SchemeFallback)
	}

	if _, err := proxypool.ParseRotation(p.Rotation); err != nil {
		return fmt.Errorf("%w: proxies.rotation: %v", utils.ErrConfigValidation, err)
	}
	if p.Rotation == "" {
		p.Rotation = proxypool.RotateNoProxy.String()
	}

	switch strings.ToLower(p.InvalidEntries) {
	case "":
		p.InvalidEntries = "keep"
	case "keep", "drop":
		p.InvalidEntries = strings.ToLower(p.InvalidEntries)
	default:
		*warnings = append(*warnings, fmt.Sprintf(
			"proxies.invalid_entries %q is not 'keep' or 'drop', defaulting to 'keep'", p.InvalidEntries))
		p.InvalidEntries = "keep"
	}
	return nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
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

// PoolSource turns the proxy settings into a pool source.
func (c *AppConfig) PoolSource() proxypool.Source {
	if len(c.Proxies.List) > 0 {
		return proxypool.Source{Proxies: c.Proxies.List}
	}
	return proxypool.ParseSource(c.Proxies.Source)
}

// PoolOptions returns the pool options implied by the proxy settings.
func (c *AppConfig) PoolOptions() []proxypool.Option {
	policy := proxypool.KeepInvalid
	if c.Proxies.InvalidEntries == "drop" {
		policy = proxypool.DropInvalid
	}
	return []proxypool.Option{
		proxypool.WithSchemeFallback(c.Proxies.SchemeFallback),
		proxypool.WithInvalidPolicy(policy),
	}
}

// Rotation returns the parsed rotation strategy. Call after Validate.
func (c *AppConfig) Rotation() proxypool.Rotation {
	r, _ := proxypool.ParseRotation(c.Proxies.Rotation)
	return r
}
