package main

import (
	"crypto/ed25519"

	"github.com/meshcore/mesh/internal/manifest"
	"github.com/meshcore/mesh/internal/meshtypes"
)

// manifestLoadPayload decodes and verifies the manifest currently held by
// store against mesh's identity. A nil rootPub or an empty store are not
// errors: callers fall back to an unauthenticated/empty transport secret
// until a manifest has been fetched (e.g. immediately after init, before
// the first bootstrap sync).
func manifestLoadPayload(rootPub ed25519.PublicKey, mesh string, store *manifest.Store) (*meshtypes.ManifestPayload, error) {
	if rootPub == nil {
		return nil, nil
	}
	env := store.Load()
	if env == nil {
		return nil, nil
	}
	return manifest.Verify(rootPub, mesh, env)
}
