// Package noncecache implements the bounded-window duplicate detector used
// to reject replayed messages (§4.3), grounded on the teacher's
// core/message/nonce Manager: a mutex-protected map with a background
// cleanup loop, generalized here to accept the observation timestamp the
// caller already computed rather than always using time.Now.
package noncecache

import (
	"sync"
	"time"

	"github.com/meshcore/mesh/internal/metrics"
)

// Cache records observed nonces and rejects duplicates within window.
type Cache struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	stop chan struct{}
}

// New creates a cache with the given replay window and starts its background
// cleanup loop at the given interval. Callers must call Close to stop it.
func New(window time.Duration, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		window: window,
		seen:   make(map[string]time.Time),
		stop:   make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Check records nonce as observed at observedAt and reports whether it was
// fresh. A nonce already present (and not yet expired) is rejected. Every
// call also prunes entries older than window relative to observedAt.
func (c *Cache) Check(nonce string, observedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(observedAt)

	if ts, ok := c.seen[nonce]; ok {
		if observedAt.Sub(ts) <= c.window {
			metrics.NonceValidations.WithLabelValues("replayed").Inc()
			return false
		}
	}

	c.seen[nonce] = observedAt
	metrics.NonceValidations.WithLabelValues("fresh").Inc()
	return true
}

// Len reports the number of nonces currently tracked.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Close stops the background cleanup loop. Safe to call once.
func (c *Cache) Close() {
	close(c.stop)
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.pruneLocked(time.Now())
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) pruneLocked(now time.Time) {
	for nonce, ts := range c.seen {
		if now.Sub(ts) > c.window {
			delete(c.seen, nonce)
		}
	}
}
