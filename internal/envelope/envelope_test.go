package envelope

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcore/mesh/internal/meshtypes"
)

type payload struct {
	Mesh    string `json:"mesh"`
	Version int    `json:"version"`
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	env, err := Sign(priv, "root-2026-01-01", payload{Mesh: "office", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, "Ed25519", env.Alg)

	var got payload
	err = VerifyInto(pub, env, &got)
	require.NoError(t, err)
	assert.Equal(t, "office", got.Mesh)
	assert.Equal(t, 1, got.Version)
}

func TestVerify_WrongPublicKeyFails(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	env, err := Sign(priv, "kid", payload{Mesh: "office", Version: 1})
	require.NoError(t, err)

	_, err = Verify(otherPub, env)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerify_TamperedPayloadFails(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	env, err := Sign(priv, "kid", payload{Mesh: "office", Version: 1})
	require.NoError(t, err)

	tampered := *env
	tampered.Payload = tampered.Payload[:len(tampered.Payload)-1] + "A"

	_, err = Verify(pub, &tampered)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerify_MalformedEnvelopeFails(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = Verify(pub, &meshtypes.Envelope{Alg: "Ed25519", Payload: "not-base64!!", Sig: "also-not-base64!!"})
	assert.ErrorIs(t, err, ErrVerificationFailed)

	_, err = Verify(pub, nil)
	assert.ErrorIs(t, err, ErrVerificationFailed)

	_, err = Verify(pub, &meshtypes.Envelope{Alg: "RS256"})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}
