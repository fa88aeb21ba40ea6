package peerregistry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcore/mesh/internal/meshtypes"
)

func TestAll_MissingFileReturnsEmptyMap(t *testing.T) {
	r := Open(filepath.Join(t.TempDir(), "peers.json"))

	peers, err := r.All()
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestRegister_AddsSelfAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	r := Open(path)

	peers, err := r.Register(meshtypes.Peer{Name: "bob", URL: "http://localhost:9001"})
	require.NoError(t, err)
	assert.Len(t, peers, 1)

	reopened := Open(path)
	restored, err := reopened.All()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9001", restored["bob"].URL)
}

func TestRegister_PreservesExistingPeersAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	r1 := Open(path)
	_, err := r1.Register(meshtypes.Peer{Name: "alice", URL: "http://localhost:9000"})
	require.NoError(t, err)

	r2 := Open(path)
	peers, err := r2.Register(meshtypes.Peer{Name: "bob", URL: "http://localhost:9001"})
	require.NoError(t, err)

	assert.Contains(t, peers, "alice")
	assert.Contains(t, peers, "bob")
}
