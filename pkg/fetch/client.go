package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.com/scrapinghelper/scrapinghelper/pkg/config"
	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// NewClient creates an HTTP client from the configuration, routed through p.
// A nil p keeps the environment proxy settings.
func NewClient(cfg config.HTTPClientConfig, p *descriptor.Proxy, log *logrus.Entry) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true,
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20,
	}
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var connectionMap map[string]string
	if p != nil {
		connectionMap = p.ConnectionMap
	}
	if err := ConfigureProxy(transport, dialer, connectionMap); err != nil {
		return nil, err
	}

	entry := log
	if p != nil {
		entry = log.WithField("proxy", p.URL())
	}
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			entry.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
	entry.Debug("HTTP client initialized")
	return client, nil
}

// ConfigureProxy routes transport through the endpoint of a proxy connection map.
// http/https endpoints become the transport proxy, socks5 replaces the dialer and
// direct disables proxying. A nil map leaves the transport untouched.
func ConfigureProxy(transport *http.Transport, dialer *net.Dialer, connectionMap map[string]string) error {
	if connectionMap == nil {
		return nil
	}
	endpoint := connectionMap["https"]
	if endpoint == "" {
		endpoint = connectionMap["http"]
	}
	if endpoint == "" {
		return utils.WrapErrorf(utils.ErrInvalidProxy, "empty connection map")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", utils.ErrInvalidProxy, endpoint, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5":
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		var forward proxy.Dialer = proxy.Direct
		if dialer != nil {
			forward = dialer
		}
		socks, err := proxy.SOCKS5("tcp", u.Host, auth, forward)
		if err != nil {
			return fmt.Errorf("%w: socks5 %s: %w", utils.ErrInvalidProxy, u.Host, err)
		}
		if cd, ok := socks.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return socks.Dial(network, addr)
			}
		}
		transport.Proxy = nil
	case "direct":
		transport.Proxy = nil
	default:
		return utils.WrapErrorf(utils.ErrUnsupportedTransport, "%s proxy %s", u.Scheme, u.Host)
	}
	return nil
}
