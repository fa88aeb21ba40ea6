// Package invite encodes and decodes the bounded-lifetime capability tokens
// new hosts present to join a mesh (§4.5): a base64url canonical-JSON
// payload, a dot, and a detached base64url Ed25519 signature over the
// payload bytes.
package invite

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/meshcore/mesh/internal/canon"
	"github.com/meshcore/mesh/internal/meshtypes"
)

var (
	// ErrMalformedFormat means the token isn't exactly two dot-joined base64url parts.
	ErrMalformedFormat = errors.New("invite: malformed token format")
	// ErrSignatureInvalid means the detached signature does not verify.
	ErrSignatureInvalid = errors.New("invite: signature invalid")
	// ErrPayloadShapeInvalid means the payload decoded but is missing required fields.
	ErrPayloadShapeInvalid = errors.New("invite: payload shape invalid")
)

// Encode canonicalizes payload, signs it with priv, and joins the two
// base64url parts with a dot.
func Encode(priv ed25519.PrivateKey, payload meshtypes.InvitePayload) (string, error) {
	canonical, err := canon.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("invite: canonicalize payload: %w", err)
	}

	sig := ed25519.Sign(priv, canonical)

	encodedPayload := base64.RawURLEncoding.EncodeToString(canonical)
	encodedSig := base64.RawURLEncoding.EncodeToString(sig)

	return encodedPayload + "." + encodedSig, nil
}

// Decode splits, decodes, verifies, and parses token, in that order so
// callers can distinguish each failure mode.
func Decode(pub ed25519.PublicKey, token string) (*meshtypes.InvitePayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrMalformedFormat
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedFormat, err)
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedFormat, err)
	}

	if !ed25519.Verify(pub, payloadBytes, sigBytes) {
		return nil, ErrSignatureInvalid
	}

	var payload meshtypes.InvitePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadShapeInvalid, err)
	}

	if err := validate(&payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

func validate(p *meshtypes.InvitePayload) error {
	switch {
	case p.Mesh == "":
		return fmt.Errorf("%w: mesh is required", ErrPayloadShapeInvalid)
	case p.Agent == "":
		return fmt.Errorf("%w: agent is required", ErrPayloadShapeInvalid)
	case p.NodePubKey == "":
		return fmt.Errorf("%w: nodePubKey is required", ErrPayloadShapeInvalid)
	case p.JTI == "":
		return fmt.Errorf("%w: jti is required", ErrPayloadShapeInvalid)
	case p.EXP == 0:
		return fmt.Errorf("%w: exp is required", ErrPayloadShapeInvalid)
	}
	return nil
}
