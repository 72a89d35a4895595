package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter spaces requests to the same host by a random delay in [minDelay, maxDelay).
type RateLimiter struct {
	hostLastRequest   map[string]time.Time // hostname -> last request attempt time
	hostLastRequestMu sync.Mutex
	minDelay          time.Duration
	maxDelay          time.Duration
	rnd               *rand.Rand
	rndMu             sync.Mutex
	log               *logrus.Entry
}

// NewRateLimiter creates a RateLimiter. maxDelay below minDelay is raised to minDelay.
func NewRateLimiter(minDelay, maxDelay time.Duration, log *logrus.Entry) *RateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RateLimiter{
		hostLastRequest: make(map[string]time.Time),
		minDelay:        minDelay,
		maxDelay:        maxDelay,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())),
		log:             log,
	}
}

// delay draws the spacing for the next request.
func (rl *RateLimiter) delay() time.Duration {
	span := int64(rl.maxDelay - rl.minDelay)
	if span <= 0 {
		return rl.minDelay
	}
	rl.rndMu.Lock()
	defer rl.rndMu.Unlock()
	return rl.minDelay + time.Duration(rl.rnd.Int63n(span))
}

// Wait blocks until the drawn delay has passed since the last request to host.
// It returns early with ctx.Err() when the context ends.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl.maxDelay <= 0 {
		return ctx.Err()
	}

	rl.hostLastRequestMu.Lock()
	lastReqTime, exists := rl.hostLastRequest[host]
	rl.hostLastRequestMu.Unlock()
	if !exists {
		return ctx.Err()
	}

	required := rl.delay()
	elapsed := time.Since(lastReqTime)
	if elapsed >= required {
		return ctx.Err()
	}
	sleep := required - elapsed
	rl.log.WithFields(logrus.Fields{
		"host": host, "sleep": sleep, "required_delay": required, "elapsed": elapsed,
	}).Debug("Rate limit applying sleep")

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UpdateLastRequestTime records the current time as the last request attempt time for the host.
// Call this after an HTTP request attempt to the host.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.hostLastRequestMu.Lock()
	rl.hostLastRequest[host] = time.Now()
	rl.hostLastRequestMu.Unlock()
}
