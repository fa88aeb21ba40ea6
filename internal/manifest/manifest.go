// Package manifest implements the durable, versioned, signed snapshot of
// mesh state (§4.6): load/save with write-then-rename durability via
// internal/atomicfile, and a Builder that re-signs a new version from the
// current peer set and security parameters.
package manifest

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/meshcore/mesh/internal/atomicfile"
	"github.com/meshcore/mesh/internal/envelope"
	"github.com/meshcore/mesh/internal/meshtypes"
)

// Store persists the latest signed manifest envelope at path, serializing
// writers so save is atomic with respect to partial writes (§4.6, §5).
type Store struct {
	path string

	mu      sync.Mutex
	current *meshtypes.Envelope
}

// Open loads any existing manifest at path. A missing file is not an error;
// the store simply starts empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := atomicfile.ReadIfExists(path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return s, nil
	}

	var env meshtypes.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	s.current = &env
	return s, nil
}

// Load returns the current envelope, or nil if none has been saved yet.
func (s *Store) Load() *meshtypes.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Save durably persists env as the current manifest.
func (s *Store) Save(env *meshtypes.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("manifest: marshal envelope: %w", err)
	}
	if err := atomicfile.Write(s.path, data, 0644); err != nil {
		return err
	}
	s.current = env
	return nil
}

// NextVersion returns (currentVersion ?? 0) + 1 by inspecting the stored
// envelope's payload. Verification failures are treated as "no prior
// version" so a corrupted manifest doesn't wedge version assignment; the
// caller's own verification of the loaded manifest elsewhere is what guards
// trust, not this helper.
func (s *Store) NextVersion(pub ed25519.PublicKey) int {
	s.mu.Lock()
	env := s.current
	s.mu.Unlock()

	if env == nil {
		return 1
	}

	var payload meshtypes.ManifestPayload
	if err := envelope.VerifyInto(pub, env, &payload); err != nil {
		return 1
	}
	return payload.Version + 1
}

// Builder re-signs manifests from the current peer set and security
// parameters, reusing the previous kid or deriving a fresh root-YYYY-MM-DD
// one on first use.
type Builder struct {
	Mesh string
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
}

// Build produces a new signed envelope at the given version, reusing
// previousKid if non-empty.
func (b *Builder) Build(version int, security meshtypes.SecurityParams, transport meshtypes.Transport, agents map[string]meshtypes.Peer, revocations meshtypes.Revocations, previousKid string) (*meshtypes.Envelope, error) {
	kid := previousKid
	if kid == "" {
		kid = fmt.Sprintf("root-%s", time.Now().UTC().Format("2006-01-02"))
	}

	payload := meshtypes.ManifestPayload{
		SchemaVersion: 1,
		Mesh:          b.Mesh,
		Version:       version,
		IssuedAt:      time.Now().UTC().Format(time.RFC3339),
		Security:      security,
		Transport:     transport,
		Agents:        agents,
		Revocations:   revocations,
	}

	return envelope.Sign(b.Priv, kid, payload)
}

// Verify checks env's signature and mesh identity (I4), returning the
// decoded payload on success.
func Verify(pub ed25519.PublicKey, expectedMesh string, env *meshtypes.Envelope) (*meshtypes.ManifestPayload, error) {
	var payload meshtypes.ManifestPayload
	if err := envelope.VerifyInto(pub, env, &payload); err != nil {
		return nil, err
	}
	if payload.Mesh != expectedMesh {
		return nil, fmt.Errorf("manifest: mesh mismatch: got %q want %q", payload.Mesh, expectedMesh)
	}
	return &payload, nil
}
