// Package descriptor turns raw URL and proxy strings into structured descriptors.
// Construction never fails: a string that does not validate still yields a
// descriptor, only with IsValid false.
package descriptor

import (
	"github.com/scrapinghelper/scrapinghelper/pkg/grammar"
)

// URL is the decomposed form of a raw URL string.
// Normalized is the percent-encoded form every component is taken from.
type URL struct {
	Raw        string
	Normalized string
	IsValid    bool

	Scheme   string
	Netloc   string // userinfo@host:port exactly as it appears
	Username string
	Password string
	Hostname string // lower-cased, IPv6 brackets stripped
	Port     int    // 0 when absent or explicitly :0, see HasPort
	HasPort  bool
	Path     string
	Params   string
	Query    string
	Fragment string
	Basename string // last segment of the decoded path

	Class grammar.HostClass

	safe string
}

type urlOptions struct {
	quote bool
	safe  string
}

// URLOption customises ParseURL.
type URLOption func(*urlOptions)

// WithoutQuote keeps the raw string as the normalised form.
func WithoutQuote() URLOption {
	return func(o *urlOptions) { o.quote = false }
}

// WithSafe replaces DefaultSafe as the set of characters exempt from quoting.
func WithSafe(safe string) URLOption {
	return func(o *urlOptions) { o.safe = safe }
}

// ParseURL builds a URL descriptor. Validity is judged on the raw string against
// the URL grammar. If the normalised form cannot be decomposed (bad port, unbalanced
// brackets) the descriptor is invalid with every component empty.
func ParseURL(raw string, opts ...URLOption) *URL {
	cfg := urlOptions{quote: true, safe: DefaultSafe}
	for _, opt := range opts {
		opt(&cfg)
	}

	u := &URL{Raw: raw, safe: cfg.safe}
	if raw == "" {
		return u
	}
	u.Normalized = raw
	if cfg.quote {
		u.Normalized = Quote(raw, cfg.safe)
	}

	c, err := decompose(u.Normalized)
	if err != nil {
		u.Normalized = ""
		return u
	}
	u.IsValid = grammar.IsValidURL(raw, false)
	u.Scheme = c.scheme
	u.Netloc = c.netloc
	u.Username = c.username
	u.Password = c.password
	u.Hostname = c.hostname
	u.Port = c.port
	u.HasPort = c.hasPort
	u.Path = c.path
	u.Params = c.params
	u.Query = c.query
	u.Fragment = c.fragment
	u.Basename = basename(Unquote(c.path))
	u.Class = grammar.ClassifyHost(Unquote(c.hostname))
	return u
}

func basename(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

// String returns the normalised form.
func (u *URL) String() string { return u.Normalized }

// IsPublic reports whether the URL is valid and does not point at a private host.
func (u *URL) IsPublic() bool { return u.IsValid && !u.Class.IsPrivate() }

// Quote percent-encodes s with the descriptor's safe set.
func (u *URL) Quote(s string) string { return Quote(s, u.safe) }

// Encode is Quote of the raw string.
func (u *URL) Encode() string { return Quote(u.Raw, u.safe) }

// Unquote decodes the normalised form.
func (u *URL) Unquote() string { return Unquote(u.Normalized) }

// Decode is an alias for Unquote.
func (u *URL) Decode() string { return u.Unquote() }
