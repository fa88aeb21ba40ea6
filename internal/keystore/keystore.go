// Package keystore persists Ed25519 key pairs to disk as small JSON files
// with restrictive permissions, grounded on the teacher's file-backed
// key storage (pkg/agent/crypto/storage/file.go): one file per named key,
// 0600 perms, directory created with 0700, validated IDs to block path
// traversal. Writes go through internal/atomicfile for write-then-rename
// durability, which the teacher's os.WriteFile call lacked.
package keystore

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meshcore/mesh/internal/atomicfile"
)

type keyFile struct {
	Public  string `json:"public"`
	Private string `json:"private"`
}

// Store manages Ed25519 key pairs under one directory.
type Store struct {
	directory string
}

// Open returns a Store rooted at directory, creating it if necessary.
func Open(directory string) (*Store, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, fmt.Errorf("keystore: create directory %s: %w", directory, err)
	}
	return &Store{directory: directory}, nil
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("keystore: invalid key id %q", id)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.directory, id+".key.json")
}

// Generate creates a fresh Ed25519 key pair, persists it under id, and
// returns it.
func (s *Store) Generate(id string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if err := validateID(id); err != nil {
		return nil, nil, err
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("keystore: generate key: %w", err)
	}
	if err := s.save(id, pub, priv); err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

func (s *Store) save(id string, pub ed25519.PublicKey, priv ed25519.PrivateKey) error {
	data, err := json.MarshalIndent(keyFile{
		Public:  base64.StdEncoding.EncodeToString(pub),
		Private: base64.StdEncoding.EncodeToString(priv),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal key %s: %w", id, err)
	}
	return atomicfile.Write(s.path(id), data, 0600)
}

// Load reads the key pair stored under id.
func (s *Store) Load(id string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if err := validateID(id); err != nil {
		return nil, nil, err
	}

	data, err := atomicfile.ReadIfExists(s.path(id))
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		return nil, nil, fmt.Errorf("keystore: key %q not found", id)
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, nil, fmt.Errorf("keystore: parse key %s: %w", id, err)
	}

	pub, err := base64.StdEncoding.DecodeString(kf.Public)
	if err != nil {
		return nil, nil, fmt.Errorf("keystore: decode public key %s: %w", id, err)
	}
	priv, err := base64.StdEncoding.DecodeString(kf.Private)
	if err != nil {
		return nil, nil, fmt.Errorf("keystore: decode private key %s: %w", id, err)
	}

	return ed25519.PublicKey(pub), ed25519.PrivateKey(priv), nil
}

// LoadPublicOnly reads just the public key stored under id, for hosts that
// only pin a peer's public key (e.g. the mesh root).
func (s *Store) LoadPublicOnly(id string) (ed25519.PublicKey, error) {
	pub, _, err := s.Load(id)
	return pub, err
}

// SavePublicOnly persists a public key with no matching private key, for
// hosts that pin a peer's public key out-of-band (e.g. a joining host
// pinning the mesh root) rather than generating their own pair.
func (s *Store) SavePublicOnly(id string, pub ed25519.PublicKey) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keyFile{
		Public: base64.StdEncoding.EncodeToString(pub),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal public key %s: %w", id, err)
	}
	return atomicfile.Write(s.path(id), data, 0600)
}

// Exists reports whether a key file is present for id.
func (s *Store) Exists(id string) bool {
	if err := validateID(id); err != nil {
		return false
	}
	_, err := os.Stat(s.path(id))
	return err == nil
}
