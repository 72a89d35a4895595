package fetch

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// HostLimiter caps the number of in-flight requests per host.
// One limiter is shared by every request a Scraper makes.
type HostLimiter struct {
	sems  map[string]*semaphore.Weighted
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostLimiter creates a limiter allowing maxPerHost concurrent requests per host.
func NewHostLimiter(maxPerHost int, log *logrus.Entry) *HostLimiter {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
	}
	return &HostLimiter{
		sems:  make(map[string]*semaphore.Weighted),
		limit: limit,
		log:   log,
	}
}

// Acquire blocks until a slot for host is free or ctx ends.
func (h *HostLimiter) Acquire(ctx context.Context, host string) error {
	h.mu.Lock()
	sem, ok := h.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(h.limit)
		h.sems[host] = sem
		h.log.WithFields(logrus.Fields{"host": host, "limit": h.limit}).Debug("Created host limiter")
	}
	h.mu.Unlock()
	return sem.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (h *HostLimiter) Release(host string) {
	h.mu.Lock()
	sem, ok := h.sems[host]
	h.mu.Unlock()
	if !ok {
		h.log.Errorf("hostlimit: Release called for unknown host: %s", host)
		return
	}
	sem.Release(1)
}

// Len returns the number of hosts seen so far.
func (h *HostLimiter) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sems)
}

// releasingBody frees the host slot when the response body is closed.
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
