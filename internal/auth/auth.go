// Package auth implements the per-request validation chain gating the
// message surface (§4.9): bearer token, size limit, shape, replay window,
// nonce uniqueness, and MAC verification, each producing a distinguishable
// HTTP failure code.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meshcore/mesh/internal/mac"
	"github.com/meshcore/mesh/internal/meshtypes"
	"github.com/meshcore/mesh/internal/metrics"
	"github.com/meshcore/mesh/internal/noncecache"
)

// Failure is a rejection at some stage of the pipeline, carrying the HTTP
// status and a short machine-readable code the caller can render as JSON.
type Failure struct {
	Status int
	Code   string
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("auth: %s (%d): %s", f.Code, f.Status, f.Detail)
}

func fail(status int, code, detail string) *Failure {
	return &Failure{Status: status, Code: code, Detail: detail}
}

// Pipeline is a configured instance of the C9 validation chain bound to one
// agent's transport secret, replay window, and nonce cache.
type Pipeline struct {
	Secret              string
	ReplayWindowSeconds int
	MaxMessageSizeBytes int64
	Nonces              *noncecache.Cache
}

// Authenticated holds the parsed, verified body of a message-surface request.
type Authenticated struct {
	Message meshtypes.Message
	Raw     []byte
}

// CheckBearer performs step 1 of the pipeline: constant-time comparison of
// the Authorization header against the configured transport secret.
func (p *Pipeline) CheckBearer(r *http.Request) *Failure {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return fail(http.StatusUnauthorized, "unauthorized", "missing bearer token")
	}
	token := header[len(prefix):]

	if subtle.ConstantTimeCompare([]byte(token), []byte(p.Secret)) != 1 {
		return fail(http.StatusUnauthorized, "unauthorized", "invalid bearer token")
	}
	return nil
}

// Validate runs steps 3-7 of the pipeline against a request body that must
// decode into a meshtypes.Message. The caller is responsible for step 1
// (CheckBearer) and step 2 (GET short-circuit) beforehand.
func (p *Pipeline) Validate(r *http.Request) (*Authenticated, *Failure) {
	start := time.Now()
	defer func() {
		metrics.MessageProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	if r.ContentLength > p.MaxMessageSizeBytes {
		return nil, fail(http.StatusRequestEntityTooLarge, "too_large", "message exceeds maxMessageSizeBytes")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, p.MaxMessageSizeBytes+1))
	if err != nil {
		return nil, fail(http.StatusBadRequest, "malformed", "failed to read body")
	}
	if int64(len(body)) > p.MaxMessageSizeBytes {
		return nil, fail(http.StatusRequestEntityTooLarge, "too_large", "message exceeds maxMessageSizeBytes")
	}

	var msg meshtypes.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fail(http.StatusBadRequest, "malformed", "invalid JSON body")
	}

	if msg.ID == "" || msg.Nonce == "" || msg.Timestamp == 0 || msg.MAC == "" {
		return nil, fail(http.StatusBadRequest, "malformed", "missing id, nonce, timestamp, or mac")
	}

	now := time.Now().UnixMilli()
	windowMillis := int64(p.ReplayWindowSeconds) * 1000
	if diff := now - msg.Timestamp; diff > windowMillis || diff < -windowMillis {
		return nil, fail(http.StatusBadRequest, "stale", "timestamp outside replay window")
	}

	if !p.Nonces.Check(msg.Nonce, time.UnixMilli(now)) {
		metrics.ReplayAttacksDetected.Inc()
		return nil, fail(http.StatusBadRequest, "replay", "nonce already seen")
	}

	fields := mac.Fields{
		ID:        msg.ID,
		Type:      string(msg.Type),
		Payload:   msg.Payload,
		Timestamp: msg.Timestamp,
		Nonce:     msg.Nonce,
	}
	if !mac.Verify([]byte(p.Secret), fields, msg.MAC) {
		return nil, fail(http.StatusBadRequest, "invalid_mac", "MAC verification failed")
	}

	metrics.MessageSize.Observe(float64(len(body)))
	return &Authenticated{Message: msg, Raw: body}, nil
}

// WriteFailure renders a Failure as the standard `{error, code}` JSON body.
func WriteFailure(w http.ResponseWriter, f *Failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": f.Detail,
		"code":  f.Code,
	})
}
