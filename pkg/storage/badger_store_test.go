package storage

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapinghelper/scrapinghelper/pkg/models"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestLedger(t *testing.T) *BadgerLedger {
	t.Helper()
	ledger, err := NewBadgerLedger(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func successEntry(path string) *models.DownloadEntry {
	return &models.DownloadEntry{
		Status:      models.DownloadStatusSuccess,
		LocalPath:   path,
		SHA256:      "abc123",
		Bytes:       42,
		LastAttempt: time.Now().UTC().Truncate(time.Second),
	}
}

var _ DownloadLedger = (*BadgerLedger)(nil)

func TestBadgerLedger_MarkAndLookup(t *testing.T) {
	ledger := newTestLedger(t)

	_, found, err := ledger.Lookup("https://example.com/a.csv")
	require.NoError(t, err)
	assert.False(t, found)

	want := successEntry("/tmp/a.csv")
	require.NoError(t, ledger.MarkDownloaded("https://example.com/a.csv", want))

	got, found, err := ledger.Lookup("https://example.com/a.csv")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.LocalPath, got.LocalPath)
	assert.Equal(t, want.SHA256, got.SHA256)
	assert.Equal(t, want.Bytes, got.Bytes)
	assert.True(t, want.LastAttempt.Equal(got.LastAttempt))
}

func TestBadgerLedger_CountIgnoresOverwrites(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.MarkDownloaded("https://example.com/a", successEntry("a")))
	require.NoError(t, ledger.MarkDownloaded("https://example.com/a", &models.DownloadEntry{Status: models.DownloadStatusFailure}))
	require.NoError(t, ledger.MarkDownloaded("https://example.com/b", successEntry("b")))

	count, err := ledger.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, _, err := ledger.Lookup("https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, models.DownloadStatusFailure, got.Status)
}

func TestBadgerLedger_RejectsInvalidStatus(t *testing.T) {
	ledger := newTestLedger(t)
	err := ledger.MarkDownloaded("https://example.com/a", &models.DownloadEntry{})
	assert.ErrorIs(t, err, utils.ErrDatabase)
	err = ledger.MarkDownloaded("https://example.com/a", nil)
	assert.ErrorIs(t, err, utils.ErrDatabase)
}

func TestBadgerLedger_ReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()

	first, err := NewBadgerLedger(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, first.MarkDownloaded("https://example.com/a", successEntry("a")))
	require.NoError(t, first.Close())

	second, err := NewBadgerLedger(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	count, err := second.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, found, err := second.Lookup("https://example.com/a")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBadgerLedger_ConcurrentWrites(t *testing.T) {
	ledger := newTestLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://example.com/file%d", i)
			assert.NoError(t, ledger.MarkDownloaded(url, successEntry(url)))
		}(i)
	}
	wg.Wait()

	count, err := ledger.Count()
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestBadgerLedger_CloseTwice(t *testing.T) {
	ledger, err := NewBadgerLedger(t.TempDir(), testLogger())
	require.NoError(t, err)
	require.NoError(t, ledger.Close())
	assert.NoError(t, ledger.Close())
}
