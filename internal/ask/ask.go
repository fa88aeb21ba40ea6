// Package ask implements the pending-reply coordinator that turns a
// fire-and-forget ask message into a blocking logical RPC (§4.8): register
// stores a completion channel and a one-shot deadline timer keyed by message
// id; resolve or timeout settles it exactly once (I7).
package ask

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meshcore/mesh/internal/metrics"
)

// ErrTimedOut is delivered to the caller's Wait when the deadline elapses
// with no reply.
var ErrTimedOut = errors.New("ask: timed out")

// ErrDestroyed is delivered to every pending ask when the registry is torn
// down (agent shutdown).
var ErrDestroyed = errors.New("ask: registry destroyed")

type pending struct {
	result chan string
	err    chan error
	once   sync.Once
	timer  *time.Timer
	start  time.Time
}

// settle delivers payload or err exactly once and runs onSettled iff this
// call is the one that won the race — guarding its metric side effects under
// the same sync.Once as the payload delivery prevents a losing timeout or
// Resolve call from still emitting metrics for an ask it didn't actually settle.
func (p *pending) settle(payload string, err error, onSettled func()) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		if err != nil {
			p.err <- err
		} else {
			p.result <- payload
		}
		if onSettled != nil {
			onSettled()
		}
	})
}

// Registry is the pending-ask table described in §4.8.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*pending
}

// New creates an empty ask registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*pending)}
}

// Future is the handle a caller awaits after registering an ask.
type Future struct {
	p *pending
}

// Wait blocks until the ask resolves, times out, or ctx is cancelled,
// whichever happens first.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case payload := <-f.p.result:
		return payload, nil
	case err := <-f.p.err:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Register creates a pending entry for messageId with the given timeout and
// returns a Future the caller awaits.
func (r *Registry) Register(messageID string, timeout time.Duration) *Future {
	p := &pending{
		result: make(chan string, 1),
		err:    make(chan error, 1),
		start:  time.Now(),
	}

	r.mu.Lock()
	r.entries[messageID] = p
	r.mu.Unlock()

	metrics.AsksPending.Inc()
	metrics.AsksCreated.WithLabelValues("registered").Inc()
	metrics.Global().RecordAskCreated()

	p.timer = time.AfterFunc(timeout, func() {
		r.remove(messageID)
		p.settle("", ErrTimedOut, func() {
			metrics.AsksPending.Dec()
			metrics.AsksTimedOut.Inc()
			metrics.Global().RecordAskOutcome(true, time.Since(p.start))
		})
	})

	return &Future{p: p}
}

// Resolve completes the pending ask for replyTo with payload, if one exists.
// It reports whether a matching pending ask was found.
func (r *Registry) Resolve(replyTo string, payload string) bool {
	r.mu.Lock()
	p, ok := r.entries[replyTo]
	if ok {
		delete(r.entries, replyTo)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	p.settle(payload, nil, func() {
		metrics.AsksPending.Dec()
		metrics.AsksResolved.Inc()
		metrics.AskWaitDuration.Observe(time.Since(p.start).Seconds())
		metrics.Global().RecordAskOutcome(false, time.Since(p.start))
	})
	return true
}

// Has reports whether messageId still has a pending entry.
func (r *Registry) Has(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[messageID]
	return ok
}

// Destroy cancels every pending timer and rejects every pending future with
// ErrDestroyed. Safe to call once during agent shutdown.
func (r *Registry) Destroy() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*pending)
	r.mu.Unlock()

	for _, p := range entries {
		p.settle("", ErrDestroyed, func() {
			metrics.AsksPending.Dec()
		})
	}
}

func (r *Registry) remove(messageID string) {
	r.mu.Lock()
	delete(r.entries, messageID)
	r.mu.Unlock()
}
