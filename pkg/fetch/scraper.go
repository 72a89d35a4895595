package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scrapinghelper/scrapinghelper/pkg/config"
	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/proxypool"
	"github.com/scrapinghelper/scrapinghelper/pkg/storage"
	"github.com/scrapinghelper/scrapinghelper/pkg/useragent"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// Page is a fetched and parsed HTML response
type Page struct {
	URL        string // Requested URL
	FinalURL   string // URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
	Doc        *goquery.Document
	Proxy      *descriptor.Proxy // nil when fetched without a proxy
	UserAgent  string
}

// Scraper fetches pages and files through a proxy pool with rotating user agents.
// It is safe for concurrent use; pool selection is serialised internally.
type Scraper struct {
	cfg     *config.AppConfig
	pool    *proxypool.Pool
	poolMu  sync.Mutex
	agents  *useragent.Pool
	limiter *RateLimiter
	hosts   *HostLimiter
	ledger  storage.DownloadLedger
	headers map[string]string

	clients   map[string]*http.Client // proxy endpoint ("" = none) -> client
	clientsMu sync.Mutex

	log *logrus.Entry
}

// ScraperOption customises a Scraper
type ScraperOption func(*Scraper)

// WithLedger enables skipping downloads already recorded in ledger
func WithLedger(ledger storage.DownloadLedger) ScraperOption {
	return func(s *Scraper) { s.ledger = ledger }
}

// NewScraper wires a scraper from validated configuration. pool and agents may be nil.
func NewScraper(cfg *config.AppConfig, pool *proxypool.Pool, agents *useragent.Pool, log *logrus.Entry, opts ...ScraperOption) *Scraper {
	s := &Scraper{
		cfg:     cfg,
		pool:    pool,
		agents:  agents,
		limiter: NewRateLimiter(cfg.Delay.Min, cfg.Delay.Max, log),
		hosts:   NewHostLimiter(cfg.MaxRequestsPerHost, log),
		headers: cfg.EffectiveHeaders(),
		clients: make(map[string]*http.Client),
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectProxy picks a proxy from the pool under the given rotation.
// RotateNoProxy yields nil without touching the pool.
func (s *Scraper) SelectProxy(rot proxypool.Rotation) (*descriptor.Proxy, error) {
	if rot == proxypool.RotateNoProxy {
		return nil, nil
	}
	if s.pool == nil {
		return nil, fmt.Errorf("%w: no pool configured for rotation %s", utils.ErrEmptyPool, rot)
	}
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	return s.pool.Select(rot)
}

// directClientKey caches the client used when no proxy is selected. It cannot
// collide with a proxy endpoint, which always carries a scheme.
const directClientKey = "direct"

// clientFor returns the cached client for p, building it on first use.
// An invalid proxy is an error; it never falls back to a direct connection.
func (s *Scraper) clientFor(p *descriptor.Proxy) (*http.Client, error) {
	key := directClientKey
	if p != nil {
		if !p.IsValid {
			return nil, utils.WrapErrorf(utils.ErrInvalidProxy, "proxy entry %q is not a valid endpoint", p.Raw)
		}
		key = p.URL()
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if client, ok := s.clients[key]; ok {
		return client, nil
	}
	client, err := NewClient(s.cfg.HTTPClientSettings, p, s.log)
	if err != nil {
		return nil, err
	}
	s.clients[key] = client
	return client, nil
}

// statusError maps a non-2xx status to the matching HTTP sentinel
func statusError(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, resp.Status)
	case code >= 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, code, resp.Status)
	default:
		return fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, code, resp.Status)
	}
}

// do performs a GET for target. On success the caller owns resp.Body; closing it
// frees the host slot.
func (s *Scraper) do(ctx context.Context, target string, rot proxypool.Rotation) (resp *http.Response, p *descriptor.Proxy, ua string, err error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: parsing '%s': %w", utils.ErrRequestCreation, target, err)
	}
	if scheme := strings.ToLower(parsed.Scheme); scheme != "http" && scheme != "https" {
		return nil, nil, "", fmt.Errorf("%w: unsupported scheme in '%s'", utils.ErrRequestCreation, target)
	}

	p, err = s.SelectProxy(rot)
	if err != nil {
		return nil, nil, "", err
	}
	client, err := s.clientFor(p)
	if err != nil {
		return nil, p, "", err
	}

	reqLog := s.log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"url":        target,
		"proxy":      p.URL(),
	})

	host := parsed.Hostname()
	if err := s.hosts.Acquire(ctx, host); err != nil {
		return nil, p, "", err
	}
	release := func() { s.hosts.Release(host) }
	if err := s.limiter.Wait(ctx, host); err != nil {
		release()
		return nil, p, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		release()
		return nil, p, "", fmt.Errorf("%w: creating request for '%s': %w", utils.ErrRequestCreation, target, err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.agents != nil {
		ua = s.agents.Random()
		req.Header.Set("User-Agent", ua)
	}

	reqLog.Debug("Sending request")
	resp, err = client.Do(req)
	s.limiter.UpdateLastRequestTime(host)
	if err != nil {
		release()
		reqLog.Warnf("Request failed: %v", err)
		return nil, p, ua, err
	}

	if statusErr := statusError(resp); statusErr != nil {
		reqLog.WithField("status_code", resp.StatusCode).Warn("Non-2xx response")
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		release()
		return nil, p, ua, statusErr
	}
	reqLog.WithField("status_code", resp.StatusCode).Debug("Response received")
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	return resp, p, ua, nil
}

// Get fetches target and parses it as HTML. Non-2xx responses return an HTTP sentinel error.
func (s *Scraper) Get(ctx context.Context, target string, rot proxypool.Rotation) (*Page, error) {
	resp, p, ua, err := s.do(ctx, target, rot)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	maxBytes := s.cfg.MaxBodyBytes
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1) // +1 to detect exceeding the limit
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body from '%s': %w", utils.ErrResponseBodyRead, target, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: page '%s' exceeds max size (%d > %d bytes)",
			utils.ErrResponseBodyRead, target, len(body), maxBytes)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing HTML from '%s': %w", utils.ErrParsing, target, err)
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Page{
		URL:        target,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Doc:        doc,
		Proxy:      p,
		UserAgent:  ua,
	}, nil
}

// isContextErr reports whether err came from cancellation or deadline
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
