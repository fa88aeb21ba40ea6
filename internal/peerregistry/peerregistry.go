// Package peerregistry persists the local map of known peers (name → Peer)
// that an agent auto-registers itself into on startup (§4.13 step 3, §5).
// Writes re-read the on-disk state immediately beforehand to minimize lost
// updates between concurrent agent starts on the same host, the same
// durability discipline internal/manifest and internal/queue use.
package peerregistry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/meshcore/mesh/internal/atomicfile"
	"github.com/meshcore/mesh/internal/meshtypes"
)

// Registry is a durable map of peer name to Peer, backed by one JSON file.
type Registry struct {
	path string
	mu   sync.Mutex
}

// Open returns a Registry backed by path. The file need not exist yet.
func Open(path string) *Registry {
	return &Registry{path: path}
}

// All returns every peer currently on disk.
func (r *Registry) All() (map[string]meshtypes.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked()
}

func (r *Registry) readLocked() (map[string]meshtypes.Peer, error) {
	data, err := atomicfile.ReadIfExists(r.path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return map[string]meshtypes.Peer{}, nil
	}

	var peers map[string]meshtypes.Peer
	if err := json.Unmarshal(data, &peers); err != nil {
		return nil, fmt.Errorf("peerregistry: parse %s: %w", r.path, err)
	}
	if peers == nil {
		peers = map[string]meshtypes.Peer{}
	}
	return peers, nil
}

// Register re-reads the on-disk peer map, inserts or replaces self, and
// persists the result, returning the full map as it stands after the write.
func (r *Registry) Register(self meshtypes.Peer) (map[string]meshtypes.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers, err := r.readLocked()
	if err != nil {
		return nil, err
	}
	peers[self.Name] = self

	data, err := json.Marshal(peers)
	if err != nil {
		return nil, fmt.Errorf("peerregistry: marshal: %w", err)
	}
	if err := atomicfile.Write(r.path, data, 0644); err != nil {
		return nil, err
	}
	return peers, nil
}
