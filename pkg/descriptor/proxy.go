package descriptor

import (
	"strings"

	"github.com/scrapinghelper/scrapinghelper/pkg/grammar"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// DefaultSchemeFallback is prefixed to proxy strings that carry no scheme.
const DefaultSchemeFallback = "https"

// Proxy is the decomposed form of a proxy endpoint string.
type Proxy struct {
	Raw     string
	IsValid bool

	Scheme   string
	Netloc   string
	Username string
	Password string
	Hostname string
	Port     int
	HasPort  bool

	// ConnectionMap maps "http" and "https" to the scheme-qualified endpoint.
	// It is empty, never nil, for an invalid proxy.
	ConnectionMap map[string]string

	Class grammar.HostClass
}

type proxyOptions struct {
	fallback string
}

// ProxyOption customises ParseProxy.
type ProxyOption func(*proxyOptions)

// WithSchemeFallback sets the scheme assumed when the raw string has none.
func WithSchemeFallback(scheme string) ProxyOption {
	return func(o *proxyOptions) { o.fallback = scheme }
}

// IsSupportedProxyScheme reports whether scheme is one of http, https, socks4, socks5, direct, quic.
func IsSupportedProxyScheme(scheme string) bool {
	return grammar.IsSupportedProxyScheme(scheme)
}

// HasProxyScheme reports whether raw starts with a supported "<scheme>://" prefix.
func HasProxyScheme(raw string) bool {
	scheme, _, ok := strings.Cut(raw, "://")
	return ok && IsSupportedProxyScheme(scheme)
}

// ParseProxy builds a Proxy descriptor. It never fails; an unusable string yields
// a descriptor with IsValid false and an empty ConnectionMap.
func ParseProxy(raw string, opts ...ProxyOption) *Proxy {
	cfg := proxyOptions{fallback: DefaultSchemeFallback}
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := ProxyParse(raw, cfg.fallback)
	if err != nil {
		return &Proxy{Raw: raw, ConnectionMap: map[string]string{}}
	}
	return p
}

// ProxyParse is the strict form of ParseProxy. It returns ErrInvalidProxy when raw does
// not match the proxy grammar, ErrUnsupportedProxyScheme for a bad fallback and ErrParse
// when the endpoint cannot be decomposed.
func ProxyParse(raw, fallback string) (*Proxy, error) {
	if fallback == "" {
		fallback = DefaultSchemeFallback
	}
	if !IsSupportedProxyScheme(fallback) {
		return nil, utils.WrapErrorf(utils.ErrUnsupportedProxyScheme, "scheme fallback %q", fallback)
	}
	m := grammar.MatchProxy(raw)
	if m == nil {
		return nil, utils.WrapErrorf(utils.ErrInvalidProxy, "%q", raw)
	}

	endpoint := raw
	if !HasProxyScheme(raw) {
		endpoint = strings.ToLower(fallback) + "://" + raw
	}
	c, err := decompose(endpoint)
	if err != nil {
		return nil, err
	}

	return &Proxy{
		Raw:      raw,
		IsValid:  true,
		Scheme:   c.scheme,
		Netloc:   c.netloc,
		Username: c.username,
		Password: c.password,
		Hostname: c.hostname,
		Port:     c.port,
		HasPort:  c.hasPort,
		ConnectionMap: map[string]string{
			"http":  endpoint,
			"https": endpoint,
		},
		Class: m.Class(),
	}, nil
}

// URL returns the scheme-qualified endpoint, or "" for an invalid proxy.
func (p *Proxy) URL() string {
	if p == nil {
		return ""
	}
	return p.ConnectionMap["https"]
}

// String returns the raw proxy string.
func (p *Proxy) String() string {
	if p == nil {
		return ""
	}
	return p.Raw
}
