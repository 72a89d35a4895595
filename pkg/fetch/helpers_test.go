package fetch

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/scrapinghelper/scrapinghelper/pkg/config"
	"github.com/scrapinghelper/scrapinghelper/pkg/models"
	"github.com/scrapinghelper/scrapinghelper/pkg/proxypool"
	"github.com/scrapinghelper/scrapinghelper/pkg/useragent"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// testConfig returns a validated config writing downloads under dir
func testConfig(t *testing.T, dir string) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{}
	cfg.Download.OutputDir = dir
	_, err := cfg.Validate()
	require.NoError(t, err)
	return cfg
}

func testAgents(t *testing.T, agents ...string) *useragent.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.txt")
	data := ""
	for _, a := range agents {
		data += a + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	pool, err := useragent.Load(path, 0, useragent.WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	return pool
}

func testProxyPool(t *testing.T, proxies ...string) *proxypool.Pool {
	t.Helper()
	pool, err := proxypool.New(context.Background(), proxypool.Source{Proxies: proxies},
		proxypool.WithLogger(testLogger()), proxypool.WithDefaultURL(""))
	require.NoError(t, err)
	return pool
}

// memLedger is an in-memory DownloadLedger
type memLedger struct {
	mu      sync.Mutex
	entries map[string]models.DownloadEntry
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]models.DownloadEntry)}
}

func (m *memLedger) MarkDownloaded(url string, entry *models.DownloadEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[url] = *entry
	return nil
}

func (m *memLedger) Lookup(url string) (*models.DownloadEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[url]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (m *memLedger) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *memLedger) Close() error { return nil }
