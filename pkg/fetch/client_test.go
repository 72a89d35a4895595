package fetch

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapinghelper/scrapinghelper/pkg/config"
	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

func TestConfigureProxy(t *testing.T) {
	tests := []struct {
		name      string
		connMap   map[string]string
		wantErr   error
		wantProxy bool // transport.Proxy left non-nil
	}{
		{name: "nil map keeps environment", connMap: nil, wantProxy: true},
		{name: "empty map", connMap: map[string]string{}, wantErr: utils.ErrInvalidProxy},
		{name: "http", connMap: map[string]string{"http": "http://10.0.0.1:8080", "https": "http://10.0.0.1:8080"}, wantProxy: true},
		{name: "https endpoint", connMap: map[string]string{"https": "https://10.0.0.1:8443"}, wantProxy: true},
		{name: "socks5", connMap: map[string]string{"https": "socks5://user:pw@10.0.0.1:1080"}},
		{name: "direct", connMap: map[string]string{"https": "direct://10.0.0.1:80"}},
		{name: "socks4 has no transport", connMap: map[string]string{"https": "socks4://10.0.0.1:1080"}, wantErr: utils.ErrUnsupportedTransport},
		{name: "quic has no transport", connMap: map[string]string{"https": "quic://10.0.0.1:443"}, wantErr: utils.ErrUnsupportedTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &net.Dialer{Timeout: time.Second}
			transport := &http.Transport{Proxy: http.ProxyFromEnvironment, DialContext: dialer.DialContext}

			err := ConfigureProxy(transport, dialer, tt.connMap)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProxy, transport.Proxy != nil)
			assert.NotNil(t, transport.DialContext)
		})
	}
}

func TestConfigureProxy_HTTPProxyURL(t *testing.T) {
	transport := &http.Transport{}
	err := ConfigureProxy(transport, nil, map[string]string{"https": "http://u:p@10.0.0.1:3128"})
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	u, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:3128", u.Host)
	assert.Equal(t, "u", u.User.Username())
}

func TestNewClient(t *testing.T) {
	cfg := &config.AppConfig{}
	_, err := cfg.Validate()
	require.NoError(t, err)

	client, err := NewClient(cfg.HTTPClientSettings, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, cfg.HTTPClientSettings.Timeout, client.Timeout)

	p := descriptor.ParseProxy("socks5://10.0.0.1:1080")
	require.True(t, p.IsValid)
	client, err = NewClient(cfg.HTTPClientSettings, p, testLogger())
	require.NoError(t, err)
	transport := client.Transport.(*http.Transport)
	assert.Nil(t, transport.Proxy)

	_, err = NewClient(cfg.HTTPClientSettings, descriptor.ParseProxy("not a proxy"), testLogger())
	assert.ErrorIs(t, err, utils.ErrInvalidProxy)

	_, err = NewClient(cfg.HTTPClientSettings, descriptor.ParseProxy("socks4://10.0.0.1:1080"), testLogger())
	assert.ErrorIs(t, err, utils.ErrUnsupportedTransport)
}
