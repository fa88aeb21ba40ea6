// Package queue implements the in-process FIFO of incoming messages with an
// optional durable mirror (§4.7): enqueue/drain/peek are all serialized
// through one mutex so concurrent HTTP handlers observe a total order
// consistent with acceptance order, and persistence failures never fail an
// enqueue.
package queue

import (
	"encoding/json"
	"sync"

	"github.com/meshcore/mesh/internal/atomicfile"
	"github.com/meshcore/mesh/internal/logger"
	"github.com/meshcore/mesh/internal/meshtypes"
)

// Queue is a FIFO of meshtypes.IncomingMessage with an optional on-disk mirror.
type Queue struct {
	mirrorPath string
	log        logger.Logger

	mu       sync.Mutex
	messages []meshtypes.IncomingMessage
}

// New creates a queue. If mirrorPath is non-empty, any prior mirror is read
// back verbatim; a missing or corrupt mirror is treated as empty rather than
// a startup failure (§9).
func New(mirrorPath string, log logger.Logger) *Queue {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	q := &Queue{mirrorPath: mirrorPath, log: log}

	if mirrorPath == "" {
		return q
	}

	data, err := atomicfile.ReadIfExists(mirrorPath)
	if err != nil || data == nil {
		return q
	}

	var restored []meshtypes.IncomingMessage
	if err := json.Unmarshal(data, &restored); err != nil {
		log.Warn("queue: discarding unreadable mirror", logger.String("path", mirrorPath), logger.Error(err))
		return q
	}
	q.messages = restored
	return q
}

// Enqueue appends m and best-effort persists the full queue.
func (q *Queue) Enqueue(m meshtypes.IncomingMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.messages = append(q.messages, m)
	q.persistLocked()
}

// Drain returns every message and clears the queue, persisting empty state.
func (q *Queue) Drain() []meshtypes.IncomingMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.messages
	q.messages = nil
	q.persistLocked()
	return out
}

// Peek returns a read-only copy of the queue's current contents.
func (q *Queue) Peek() []meshtypes.IncomingMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]meshtypes.IncomingMessage, len(q.messages))
	copy(out, q.messages)
	return out
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func (q *Queue) persistLocked() {
	if q.mirrorPath == "" {
		return
	}

	data, err := json.Marshal(q.messages)
	if err != nil {
		q.log.Warn("queue: marshal mirror failed", logger.Error(err))
		return
	}
	if err := atomicfile.Write(q.mirrorPath, data, 0644); err != nil {
		q.log.Warn("queue: persist mirror failed", logger.Error(err))
	}
}
