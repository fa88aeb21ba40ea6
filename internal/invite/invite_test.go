package invite

import (
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcore/mesh/internal/meshtypes"
)

func samplePayload() meshtypes.InvitePayload {
	now := time.Now().UnixMilli()
	return meshtypes.InvitePayload{
		SchemaVersion: 1,
		Mesh:          "office-mesh",
		Agent:         "qa",
		NodePubKey:    "cHVia2V5Ynl0ZXM=",
		JTI:           "33333333-3333-3333-3333-333333333333",
		IAT:           now,
		NBF:           now,
		EXP:           now + int64(15*time.Minute/time.Millisecond),
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	token, err := Encode(priv, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(token, "."))

	decoded, err := Decode(pub, token)
	require.NoError(t, err)
	assert.Equal(t, "office-mesh", decoded.Mesh)
	assert.Equal(t, "qa", decoded.Agent)
}

func TestDecode_MalformedFormat(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = Decode(pub, "not-a-token")
	assert.ErrorIs(t, err, ErrMalformedFormat)

	_, err = Decode(pub, "a.b.c")
	assert.ErrorIs(t, err, ErrMalformedFormat)
}

func TestDecode_InvalidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_ = pub

	token, err := Encode(priv, samplePayload())
	require.NoError(t, err)

	_, err = Decode(otherPub, token)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestDecode_PayloadShapeInvalid(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	incomplete := samplePayload()
	incomplete.JTI = ""

	token, err := Encode(priv, incomplete)
	require.NoError(t, err)

	_, err = Decode(pub, token)
	assert.ErrorIs(t, err, ErrPayloadShapeInvalid)
}
