package storage

import "github.com/scrapinghelper/scrapinghelper/pkg/models"

// DownloadLedger remembers what has been downloaded, keyed by normalised URL
type DownloadLedger interface {
	// MarkDownloaded stores entry for url, replacing any previous record
	MarkDownloaded(url string, entry *models.DownloadEntry) error

	// Lookup returns the record for url; found is false when there is none
	Lookup(url string) (entry *models.DownloadEntry, found bool, err error)

	// Count returns the number of recorded URLs
	Count() (int, error)

	// Close cleanly closes the underlying store
	Close() error
}
