package queue

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcore/mesh/internal/meshtypes"
)

func TestEnqueueDrain_PreservesFIFOOrder(t *testing.T) {
	q := New("", nil)

	q.Enqueue(meshtypes.IncomingMessage{ID: "1"})
	q.Enqueue(meshtypes.IncomingMessage{ID: "2"})
	q.Enqueue(meshtypes.IncomingMessage{ID: "3"})

	drained := q.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, "1", drained[0].ID)
	assert.Equal(t, "2", drained[1].ID)
	assert.Equal(t, "3", drained[2].ID)
	assert.Equal(t, 0, q.Len())
}

func TestPeek_ReturnsCopyNotLive(t *testing.T) {
	q := New("", nil)
	q.Enqueue(meshtypes.IncomingMessage{ID: "1"})

	snapshot := q.Peek()
	require.Len(t, snapshot, 1)

	q.Enqueue(meshtypes.IncomingMessage{ID: "2"})
	assert.Len(t, snapshot, 1, "peek snapshot must not observe later mutation")
	assert.Equal(t, 2, q.Len())
}

func TestEnqueue_ConcurrentAppendsPreserveCount(t *testing.T) {
	q := New("", nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(meshtypes.IncomingMessage{ID: "m"})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, q.Len())
}

func TestDurableMirror_RestoresOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	q := New(path, nil)
	q.Enqueue(meshtypes.IncomingMessage{ID: "1", From: "alice"})

	reopened := New(path, nil)
	assert.Equal(t, 1, reopened.Len())
	assert.Equal(t, "alice", reopened.Peek()[0].From)
}

func TestDurableMirror_CorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	q := New(path, nil)
	assert.Equal(t, 0, q.Len())
}

func TestDurableMirror_MissingFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	q := New(path, nil)
	assert.Equal(t, 0, q.Len())
}
