// Package proxypool manages an ordered list of proxy descriptors and the
// cursor/random/keep rotation over it.
package proxypool

import (
	"context"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// InvalidPolicy decides what Load does with entries that do not parse as proxies.
type InvalidPolicy int

const (
	KeepInvalid InvalidPolicy = iota // keep them visible as invalid descriptors
	DropInvalid                      // leave them out of the pool
)

// Pool is an ordered proxy list with a rotation cursor.
// It is not safe for concurrent use; callers sharing a Pool must serialise access.
type Pool struct {
	entries []string
	proxies []*descriptor.Proxy
	cursor  int // index of the entry Next returns
	current *descriptor.Proxy

	fallback   string
	invalid    InvalidPolicy
	reader     ReferenceReader
	baseDir    string
	defaultURL string
	rnd        *rand.Rand
	log        *logrus.Entry
}

// Option configures a Pool.
type Option func(*Pool)

// WithSchemeFallback sets the scheme assumed for entries without one.
func WithSchemeFallback(scheme string) Option {
	return func(p *Pool) { p.fallback = strings.ToLower(scheme) }
}

// WithInvalidPolicy sets how unparseable entries are treated.
func WithInvalidPolicy(policy InvalidPolicy) Option {
	return func(p *Pool) { p.invalid = policy }
}

// WithReader replaces the reader used for file and remote sources.
func WithReader(r ReferenceReader) Option {
	return func(p *Pool) { p.reader = r }
}

// WithBaseDir sets the directory "file://./x" references resolve against.
func WithBaseDir(dir string) Option {
	return func(p *Pool) { p.baseDir = dir }
}

// WithDefaultURL replaces DefaultSourceURL. An empty url means an empty source yields an empty pool.
func WithDefaultURL(url string) Option {
	return func(p *Pool) { p.defaultURL = url }
}

// WithRand sets the random source used by Random.
func WithRand(r *rand.Rand) Option {
	return func(p *Pool) { p.rnd = r }
}

// WithLogger sets the log entry.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Pool) { p.log = log }
}

func discardEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// New builds a pool and loads src into it.
func New(ctx context.Context, src Source, opts ...Option) (*Pool, error) {
	p := &Pool{
		fallback:   descriptor.DefaultSchemeFallback,
		invalid:    KeepInvalid,
		defaultURL: DefaultSourceURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = discardEntry()
	}
	if p.reader == nil {
		p.reader = NewRefReader(nil, p.log)
	}
	if p.baseDir == "" {
		p.baseDir = executableDir()
	}
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if !descriptor.IsSupportedProxyScheme(p.fallback) {
		return nil, utils.WrapErrorf(utils.ErrUnsupportedProxyScheme, "scheme fallback %q", p.fallback)
	}

	if err := p.Load(ctx, src); err != nil {
		return nil, err
	}
	return p, nil
}

// Load replaces the pool contents with the entries of src and resets the cursor.
// The current proxy is left as it was. An empty src falls back to $SCRAPINGHELPER_PROXIES,
// then to the default URL.
func (p *Pool) Load(ctx context.Context, src Source) error {
	entries, err := p.resolve(ctx, src)
	if err != nil {
		return err
	}
	p.setEntries(entries)
	return nil
}

func (p *Pool) resolve(ctx context.Context, src Source) ([]string, error) {
	switch {
	case len(src.Proxies) > 0:
		return cleanEntries(src.Proxies), nil
	case src.File != "":
		return p.reader.ReadLines(ctx, filePrefix+resolveFileRef(src.File, p.baseDir))
	case src.URL != "":
		return p.reader.ReadLines(ctx, src.URL)
	}

	if env := ParseSource(os.Getenv(EnvProxies)); !env.IsZero() {
		p.log.WithField("source", env.String()).Debug("Using proxies from environment")
		return p.resolve(ctx, env)
	}
	if p.defaultURL == "" {
		return nil, nil
	}
	p.log.WithField("source", p.defaultURL).Debug("Using default proxy list")
	return p.reader.ReadLines(ctx, p.defaultURL)
}

func (p *Pool) setEntries(entries []string) {
	p.entries = make([]string, 0, len(entries))
	p.proxies = make([]*descriptor.Proxy, 0, len(entries))
	invalid := 0
	for _, e := range entries {
		d := descriptor.ParseProxy(e, descriptor.WithSchemeFallback(p.fallback))
		if !d.IsValid {
			invalid++
			if p.invalid == DropInvalid {
				p.log.WithField("entry", e).Debug("Dropping invalid proxy entry")
				continue
			}
			p.log.WithField("entry", e).Warn("Invalid proxy entry kept in pool")
		}
		p.entries = append(p.entries, e)
		p.proxies = append(p.proxies, d)
	}
	p.cursor = 0
	p.log.WithFields(logrus.Fields{
		"entries": len(p.entries),
		"invalid": invalid,
	}).Info("Proxy pool loaded")
}

// Next returns the entry at the cursor and advances it, wrapping at the end.
func (p *Pool) Next() (*descriptor.Proxy, error) {
	if len(p.proxies) == 0 {
		return nil, utils.ErrEmptyPool
	}
	d := p.proxies[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.proxies)
	p.current = d
	return d, nil
}

// Random returns a uniformly chosen entry. The cursor does not move.
func (p *Pool) Random() (*descriptor.Proxy, error) {
	if len(p.proxies) == 0 {
		return nil, utils.ErrEmptyPool
	}
	d := p.proxies[p.rnd.Intn(len(p.proxies))]
	p.current = d
	return d, nil
}

// Keep returns the current proxy, falling back to Next when none has been selected yet.
func (p *Pool) Keep() (*descriptor.Proxy, error) {
	if p.current != nil {
		return p.current, nil
	}
	return p.Next()
}

// Select dispatches on the rotation strategy. RotateNoProxy returns nil, nil;
// an unknown rotation is an error.
func (p *Pool) Select(r Rotation) (*descriptor.Proxy, error) {
	switch r {
	case RotateNoProxy:
		return nil, nil
	case RotateKeep:
		return p.Keep()
	case RotateNext:
		return p.Next()
	case RotateRandom:
		return p.Random()
	default:
		return nil, utils.WrapErrorf(utils.ErrConfigValidation, "unknown rotation %s", r)
	}
}

// SchemeFallback returns the scheme assumed for entries without one.
func (p *Pool) SchemeFallback() string { return p.fallback }

// SetSchemeFallback changes the fallback scheme and re-parses every entry with it.
func (p *Pool) SetSchemeFallback(scheme string) error {
	scheme = strings.ToLower(scheme)
	if !descriptor.IsSupportedProxyScheme(scheme) {
		return utils.WrapErrorf(utils.ErrUnsupportedProxyScheme, "scheme fallback %q", scheme)
	}
	p.fallback = scheme
	for i, e := range p.entries {
		p.proxies[i] = descriptor.ParseProxy(e, descriptor.WithSchemeFallback(scheme))
	}
	return nil
}

// Entries returns a copy of the raw entries in pool order.
func (p *Pool) Entries() []string {
	return append([]string(nil), p.entries...)
}

// Descriptors returns a copy of the parsed entries in pool order.
func (p *Pool) Descriptors() []*descriptor.Proxy {
	return append([]*descriptor.Proxy(nil), p.proxies...)
}

// Len returns the number of entries.
func (p *Pool) Len() int { return len(p.proxies) }

// Current returns the most recently selected proxy, or nil.
func (p *Pool) Current() *descriptor.Proxy { return p.current }
