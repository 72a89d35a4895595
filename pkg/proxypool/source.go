package proxypool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/scrapinghelper/scrapinghelper/pkg/grammar"
	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// EnvProxies names the environment variable consulted when a Source is empty.
const EnvProxies = "SCRAPINGHELPER_PROXIES"

// DefaultSourceURL is the public SOCKS5 list used when nothing else is configured.
const DefaultSourceURL = "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks5.txt"

const filePrefix = "file://"

// Source says where pool entries come from. The first non-empty field wins:
// Proxies, then File, then URL.
type Source struct {
	Proxies []string
	File    string // path or file:// reference; "file://./x" is relative to the base dir
	URL     string // http(s) list, one proxy per line
}

// IsZero reports whether no field is set.
func (s Source) IsZero() bool {
	return len(s.Proxies) == 0 && s.File == "" && s.URL == ""
}

func (s Source) String() string {
	switch {
	case len(s.Proxies) > 0:
		return fmt.Sprintf("inline(%d)", len(s.Proxies))
	case s.File != "":
		return s.File
	case s.URL != "":
		return s.URL
	}
	return "none"
}

// ParseSource classifies a single reference string: a file:// reference, an http(s)
// list URL, or a comma-separated list of proxies. An http(s) string that is itself
// a valid proxy endpoint counts as a proxy.
func ParseSource(ref string) Source {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case ref == "":
		return Source{}
	case strings.HasPrefix(lower, filePrefix):
		return Source{File: ref}
	case (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) &&
		!grammar.IsValidProxy(ref, false):
		return Source{URL: ref}
	}
	return Source{Proxies: cleanEntries(strings.Split(ref, ","))}
}

func cleanEntries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// resolveFileRef strips file:// and anchors "./" style paths at baseDir.
func resolveFileRef(ref, baseDir string) string {
	path := ref
	if strings.HasPrefix(strings.ToLower(path), filePrefix) {
		path = path[len(filePrefix):]
	}
	if strings.HasPrefix(path, ".") && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// executableDir is the default base for relative file references.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ReferenceReader returns the entries behind a file:// or http(s):// reference.
type ReferenceReader interface {
	ReadLines(ctx context.Context, ref string) ([]string, error)
}

// RefReader reads local files from disk and remote lists over HTTP with resty.
type RefReader struct {
	client *resty.Client
	log    *logrus.Entry
}

// NewRefReader creates a reader. A nil client gets a resty client with a 30s timeout and two retries.
func NewRefReader(client *resty.Client, log *logrus.Entry) *RefReader {
	if client == nil {
		client = resty.New().
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond)
	}
	if log == nil {
		log = discardEntry()
	}
	return &RefReader{client: client, log: log}
}

// ReadLines returns the first CSV column of every non-blank, non-comment line.
func (r *RefReader) ReadLines(ctx context.Context, ref string) ([]string, error) {
	lower := strings.ToLower(ref)
	var data []byte
	switch {
	case strings.HasPrefix(lower, filePrefix):
		path := ref[len(filePrefix):]
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", utils.ErrSourceLoad, path, err)
		}
		data = b
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		resp, err := r.client.R().SetContext(ctx).Get(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch %s: %w", utils.ErrSourceLoad, ref, err)
		}
		if !resp.IsSuccess() {
			return nil, utils.WrapErrorf(utils.ErrSourceLoad, "fetch %s: unexpected status %d", ref, resp.StatusCode())
		}
		data = resp.Body()
	default:
		return nil, utils.WrapErrorf(utils.ErrSourceLoad, "unsupported reference %q", ref)
	}

	lines, skipped, err := splitLines(data)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", utils.ErrSourceLoad, ref, err)
	}
	r.log.WithFields(logrus.Fields{
		"ref":     ref,
		"entries": len(lines),
		"skipped": skipped,
	}).Debug("Read reference list")
	return lines, nil
}

// splitLines keeps the first comma-separated field of each line. Blank and '#' lines are counted, not kept.
func splitLines(data []byte) (lines []string, skipped int, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			skipped++
			continue
		}
		first, _, _ := strings.Cut(line, ",")
		first = strings.Trim(strings.TrimSpace(first), `"`)
		if first == "" {
			skipped++
			continue
		}
		lines = append(lines, first)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	return lines, skipped, nil
}
