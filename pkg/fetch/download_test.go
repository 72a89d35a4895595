package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/models"
	"github.com/scrapinghelper/scrapinghelper/pkg/proxypool"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

const fileBody = "name,ua\nchrome,Mozilla/5.0\n"

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// fileServer serves fileBody for every path except /missing and counts hits
func fileServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(fileBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		r    utils.Replacer
		want string
	}{
		{name: "plain", raw: "https://example.com/files/User_Agents.csv", want: "User_Agents.csv"},
		{name: "decoded spaces replaced", raw: "https://example.com/files/20000%20User%20Agents.csv",
			r: utils.Pairs{{Old: " ", New: "_"}}, want: "20000_User_Agents.csv"},
		{name: "literal dot", raw: "https://example.com/a.b.csv",
			r: utils.AnyOf{Old: []string{"."}, New: "-"}, want: "a-b-csv"},
		{name: "invalid characters", raw: "https://example.com/what%3Fis%2Athis.txt", want: "what_is_this.txt"},
		{name: "directory path", raw: "https://example.com/download/", want: "download"},
		{name: "no path", raw: "https://example.com", want: "download"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filename(descriptor.ParseURL(tt.raw), tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := Filename(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "download", got)
}

func TestDownload_ToOutputDir(t *testing.T) {
	srv, _ := fileServer(t)
	dir := t.TempDir()
	s := NewScraper(testConfig(t, dir), nil, nil, testLogger())

	res, err := s.Download(context.Background(), srv.URL+"/data/agents.csv", "", proxypool.RotateNoProxy)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "agents.csv"), res.Path)
	assert.Equal(t, int64(len(fileBody)), res.Bytes)
	assert.Equal(t, sha(fileBody), res.SHA256)
	assert.False(t, res.Skipped)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, fileBody, string(data))
}

func TestDownload_Destinations(t *testing.T) {
	srv, _ := fileServer(t)
	dir := t.TempDir()
	s := NewScraper(testConfig(t, t.TempDir()), nil, nil, testLogger())

	explicit := filepath.Join(dir, "nested", "renamed.csv")
	res, err := s.Download(context.Background(), srv.URL+"/agents.csv", explicit, proxypool.RotateNoProxy)
	require.NoError(t, err)
	assert.Equal(t, explicit, res.Path)

	res, err = s.Download(context.Background(), srv.URL+"/agents.csv", dir, proxypool.RotateNoProxy)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "agents.csv"), res.Path)

	sub := filepath.Join(dir, "new") + string(os.PathSeparator)
	res, err = s.Download(context.Background(), srv.URL+"/agents.csv", sub, proxypool.RotateNoProxy)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new", "agents.csv"), res.Path)
}

func TestDownload_LedgerSkipsUnchangedFiles(t *testing.T) {
	srv, hits := fileServer(t)
	cfg := testConfig(t, t.TempDir())
	cfg.Download.SkipExisting = true
	ledger := newMemLedger()
	s := NewScraper(cfg, nil, nil, testLogger(), WithLedger(ledger))
	target := srv.URL + "/agents.csv"

	first, err := s.Download(context.Background(), target, "", proxypool.RotateNoProxy)
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	entry, found, err := ledger.Lookup(descriptor.ParseURL(target).Normalized)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.DownloadStatusSuccess, entry.Status)
	assert.Equal(t, first.SHA256, entry.SHA256)
	assert.False(t, entry.LastAttempt.IsZero())

	second, err := s.Download(context.Background(), target, "", proxypool.RotateNoProxy)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, int32(1), hits.Load())

	// A modified file on disk is fetched again.
	require.NoError(t, os.WriteFile(first.Path, []byte("tampered"), 0644))
	third, err := s.Download(context.Background(), target, "", proxypool.RotateNoProxy)
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownload_LedgerIgnoredWithoutSkipExisting(t *testing.T) {
	srv, hits := fileServer(t)
	s := NewScraper(testConfig(t, t.TempDir()), nil, nil, testLogger(), WithLedger(newMemLedger()))

	for i := 0; i < 2; i++ {
		res, err := s.Download(context.Background(), srv.URL+"/agents.csv", "", proxypool.RotateNoProxy)
		require.NoError(t, err)
		assert.False(t, res.Skipped)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownload_FailureRecorded(t *testing.T) {
	srv, _ := fileServer(t)
	ledger := newMemLedger()
	s := NewScraper(testConfig(t, t.TempDir()), nil, nil, testLogger(), WithLedger(ledger))
	target := srv.URL + "/missing"

	_, err := s.Download(context.Background(), target, "", proxypool.RotateNoProxy)
	assert.ErrorIs(t, err, utils.ErrClientHTTPError)

	entry, found, err := ledger.Lookup(descriptor.ParseURL(target).Normalized)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.DownloadStatusFailure, entry.Status)
	assert.Equal(t, "HTTP_404", entry.ErrorType)
	assert.Empty(t, entry.LocalPath)
}

func TestDownload_CancelledContextNotRecorded(t *testing.T) {
	srv, _ := fileServer(t)
	ledger := newMemLedger()
	s := NewScraper(testConfig(t, t.TempDir()), nil, nil, testLogger(), WithLedger(ledger))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Download(ctx, srv.URL+"/agents.csv", "", proxypool.RotateNoProxy)
	assert.ErrorIs(t, err, context.Canceled)

	count, _ := ledger.Count()
	assert.Zero(t, count)
}

func TestDownloadAll(t *testing.T) {
	srv, hits := fileServer(t)
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Download.Concurrency = 2
	s := NewScraper(cfg, nil, nil, testLogger())

	targets := []string{srv.URL + "/one.csv", srv.URL + "/missing", srv.URL + "/two.csv"}
	results, err := s.DownloadAll(context.Background(), targets, proxypool.RotateNoProxy)

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrClientHTTPError)
	assert.Contains(t, err.Error(), "/missing")
	require.Len(t, results, 3)
	assert.Nil(t, results[1])
	assert.Equal(t, filepath.Join(dir, "one.csv"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "two.csv"), results[2].Path)
	assert.Equal(t, int32(3), hits.Load())
}
