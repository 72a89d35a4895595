package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/scrapinghelper/scrapinghelper/pkg/descriptor"
	"github.com/scrapinghelper/scrapinghelper/pkg/models"
	"github.com/scrapinghelper/scrapinghelper/pkg/proxypool"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// DownloadResult describes one completed (or skipped) download
type DownloadResult struct {
	URL     string
	Path    string
	Bytes   int64
	SHA256  string
	Skipped bool // Already present per the ledger, nothing fetched
}

// Filename derives a local filename from the URL basename, applying r (literal, case-sensitive)
// before sanitising. An empty result falls back to "download".
func Filename(u *descriptor.URL, r utils.Replacer) (string, error) {
	name := ""
	if u != nil {
		name = u.Basename
	}
	if r != nil {
		replaced, err := utils.ReplaceString(name, r, utils.ReplaceOptions{Literal: true})
		if err != nil {
			return "", err
		}
		name = replaced
	}
	return utils.SanitizeFilename(name), nil
}

// destPath resolves where target is written. An empty dest means the configured
// output directory; a directory (existing, or ending in a separator) gets the derived filename.
func (s *Scraper) destPath(u *descriptor.URL, dest string) (string, error) {
	dir := ""
	switch {
	case dest == "":
		dir = s.cfg.Download.OutputDir
	case strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(os.PathSeparator)):
		dir = dest
	default:
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			dir = dest
		} else {
			return dest, nil
		}
	}
	name, err := Filename(u, nil)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name), nil
}

// lookupExisting returns a skip result when the ledger holds a successful entry
// whose file is still on disk with the recorded hash
func (s *Scraper) lookupExisting(key string, log *logrus.Entry) *DownloadResult {
	if s.ledger == nil || !s.cfg.Download.SkipExisting {
		return nil
	}
	entry, found, err := s.ledger.Lookup(key)
	if err != nil {
		log.Warnf("Ledger lookup failed, downloading anyway: %v", err)
		return nil
	}
	if !found || entry.Status != models.DownloadStatusSuccess {
		return nil
	}
	sum, err := utils.CalculateFileSHA256(entry.LocalPath)
	if err != nil || sum != entry.SHA256 {
		log.WithField("path", entry.LocalPath).Debug("Recorded download missing or changed, fetching again")
		return nil
	}
	return &DownloadResult{URL: key, Path: entry.LocalPath, Bytes: entry.Bytes, SHA256: sum, Skipped: true}
}

// record writes the outcome to the ledger when one is configured
func (s *Scraper) record(key string, entry *models.DownloadEntry, log *logrus.Entry) {
	if s.ledger == nil {
		return
	}
	entry.LastAttempt = time.Now().UTC()
	if err := s.ledger.MarkDownloaded(key, entry); err != nil {
		log.Warnf("Failed to record download in ledger: %v", err)
	}
}

// Download fetches target into dest and returns its size and SHA-256.
// With a ledger and skip_existing enabled, a previously downloaded unchanged file is skipped.
func (s *Scraper) Download(ctx context.Context, target, dest string, rot proxypool.Rotation) (result *DownloadResult, err error) {
	u := descriptor.ParseURL(target)
	key := u.Normalized
	dlLog := s.log.WithField("url", key)

	if existing := s.lookupExisting(key, dlLog); existing != nil {
		dlLog.WithField("path", existing.Path).Info("Already downloaded, skipping")
		return existing, nil
	}

	path, err := s.destPath(u, dest)
	if err != nil {
		return nil, err
	}

	var usedProxy *descriptor.Proxy
	defer func() {
		if err == nil {
			s.record(key, &models.DownloadEntry{
				Status:    models.DownloadStatusSuccess,
				LocalPath: result.Path,
				SHA256:    result.SHA256,
				Bytes:     result.Bytes,
				Proxy:     usedProxy.URL(),
			}, dlLog)
		} else if !isContextErr(err) {
			s.record(key, &models.DownloadEntry{
				Status:    models.DownloadStatusFailure,
				Proxy:     usedProxy.URL(),
				ErrorType: utils.CategorizeError(err),
			}, dlLog)
		}
	}()

	resp, p, _, err := s.do(ctx, target, rot)
	usedProxy = p
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: ensuring directory for '%s': %w", utils.ErrFilesystem, path, err)
	}
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: creating file '%s': %w", utils.ErrFilesystem, path, err)
	}

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(out, hasher), resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(path)
		if copyErr != nil {
			return nil, fmt.Errorf("%w: copying data to '%s' (copied %d bytes): %w", utils.ErrResponseBodyRead, path, written, copyErr)
		}
		return nil, fmt.Errorf("%w: closing file '%s': %w", utils.ErrFilesystem, path, closeErr)
	}

	result = &DownloadResult{
		URL:    key,
		Path:   path,
		Bytes:  written,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}
	dlLog.WithFields(logrus.Fields{"path": path, "bytes": written}).Info("Downloaded")
	return result, nil
}

// DownloadAll downloads targets into the output directory with bounded concurrency.
// Every target is attempted; results keep input order with nil for failures,
// and the returned error joins the individual failures.
func (s *Scraper) DownloadAll(ctx context.Context, targets []string, rot proxypool.Rotation) ([]*DownloadResult, error) {
	results := make([]*DownloadResult, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(max(s.cfg.Download.Concurrency, 1))
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = fmt.Errorf("%s: %w", target, ctx.Err())
				return nil
			}
			res, err := s.Download(ctx, target, "", rot)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", target, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	return results, errors.Join(errs...)
}
