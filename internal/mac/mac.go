// Package mac computes and verifies the shared-secret message authenticator
// described in spec §4.2: an HMAC-SHA256 over a fixed, delimited tuple of
// message fields, rendered as lowercase hex.
package mac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const delimiter = "|"

// Fields is the exact tuple the MAC is computed over, in order.
type Fields struct {
	ID        string
	Type      string
	Payload   string
	Timestamp int64
	Nonce     string
}

func base(f Fields) []byte {
	parts := []string{
		f.ID,
		f.Type,
		f.Payload,
		strconv.FormatInt(f.Timestamp, 10),
		f.Nonce,
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += delimiter + p
	}
	return []byte(out)
}

// Sign computes the hex-encoded HMAC-SHA256 of f under secret.
func Sign(secret []byte, f Fields) string {
	h := hmac.New(sha256.New, secret)
	h.Write(base(f))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether mac is the correct authenticator for f under secret.
// Comparison is constant-time; a length mismatch fails without leaking timing.
func Verify(secret []byte, f Fields, mac string) bool {
	expected := Sign(secret, f)
	if len(expected) != len(mac) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(mac))
}
