package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/scrapinghelper/scrapinghelper/pkg/log"
	"github.com/scrapinghelper/scrapinghelper/pkg/models"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

const (
	downloadKeyPrefix = "dl:"          // Prefix for download URL keys in DB
	ledgerDBDir       = "downloads_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerLedger implements DownloadLedger using BadgerDB
type BadgerLedger struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Count
}

// NewBadgerLedger opens (or creates) the ledger under stateDir
func NewBadgerLedger(stateDir string, logger *logrus.Entry) (*BadgerLedger, error) {
	ledger := &BadgerLedger{log: logger}

	dbPath := filepath.Join(stateDir, ledgerDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	var err error
	ledger.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := ledger.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing ledger keys: %v", err)
	} else {
		ledger.keyCount.Store(int64(count))
	}
	logger.WithFields(logrus.Fields{"path": dbPath, "entries": count}).Info("Download ledger opened")
	return ledger, nil
}

// countKeys performs a one-time full key scan at open time
func (s *BadgerLedger) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(downloadKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent downloads write disjoint keys, so conflicts are rare and short-lived.
func (s *BadgerLedger) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkDownloaded implements DownloadLedger
func (s *BadgerLedger) MarkDownloaded(url string, entry *models.DownloadEntry) error {
	if s.db == nil {
		return fmt.Errorf("%w: ledger not initialized", utils.ErrDatabase)
	}
	if entry == nil || !entry.Status.IsValid() {
		return fmt.Errorf("%w: refusing to store entry without a valid status for %s", utils.ErrDatabase, url)
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: JSON encoding ledger entry for %s: %w", utils.ErrParsing, url, err)
	}

	key := []byte(downloadKeyPrefix + url)
	added := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
			added = true
		case errGet != nil:
			return errGet
		}
		return txn.Set(key, value)
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in MarkDownloaded: %v", err)
		return fmt.Errorf("%w: writing key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return nil
}

// Lookup implements DownloadLedger
func (s *BadgerLedger) Lookup(url string) (*models.DownloadEntry, bool, error) {
	if s.db == nil {
		return nil, false, fmt.Errorf("%w: ledger not initialized", utils.ErrDatabase)
	}
	key := []byte(downloadKeyPrefix + url)
	var entry models.DownloadEntry
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if !found {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Count implements DownloadLedger
func (s *BadgerLedger) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// Close implements DownloadLedger
func (s *BadgerLedger) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing download ledger: %v", err)
			return err
		}
		s.log.Debug("Download ledger closed")
	}
	return nil
}
