// Package envelope signs and verifies canonical JSON payloads with Ed25519,
// producing the signed envelope shape used by manifests (§4.4), grounded on
// the teacher's crypto/keys Ed25519 key pair (sign/verify over raw bytes,
// sentinel error on verification failure).
package envelope

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/meshcore/mesh/internal/canon"
	"github.com/meshcore/mesh/internal/meshtypes"
)

// ErrVerificationFailed is returned for any signature, decode, or parse
// failure during verification — never a panic across the boundary.
var ErrVerificationFailed = errors.New("envelope: verification failed")

const algorithm = "Ed25519"

// Sign canonicalizes payload, signs it with priv, and returns a signed
// envelope tagged with kid.
func Sign(priv ed25519.PrivateKey, kid string, payload interface{}) (*meshtypes.Envelope, error) {
	canonical, err := canon.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: canonicalize payload: %w", err)
	}

	sig := ed25519.Sign(priv, canonical)

	return &meshtypes.Envelope{
		Alg:     algorithm,
		Kid:     kid,
		Payload: base64.RawURLEncoding.EncodeToString(canonical),
		Sig:     base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}

// Verify checks env's signature against pub and, on success, decodes the
// canonical payload bytes it carries.
func Verify(pub ed25519.PublicKey, env *meshtypes.Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrVerificationFailed)
	}
	if env.Alg != algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrVerificationFailed, env.Alg)
	}

	payload, err := base64.RawURLEncoding.DecodeString(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrVerificationFailed, err)
	}

	sig, err := base64.RawURLEncoding.DecodeString(env.Sig)
	if err != nil {
		return nil, fmt.Errorf("%w: decode signature: %v", ErrVerificationFailed, err)
	}

	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: invalid public key size", ErrVerificationFailed)
	}

	if !ed25519.Verify(pub, payload, sig) {
		return nil, ErrVerificationFailed
	}

	return payload, nil
}

// VerifyInto verifies env and unmarshals its canonical payload into out.
func VerifyInto(pub ed25519.PublicKey, env *meshtypes.Envelope, out interface{}) error {
	payload, err := Verify(pub, env)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: payload shape: %v", ErrVerificationFailed, err)
	}
	return nil
}
