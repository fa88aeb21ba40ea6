// Package meshhttp exposes the message surface (C10) and bootstrap surface
// (C11) as a plain net/http handler, grounded on the teacher's
// pkg/agent/transport/http server: no framework, explicit JSON encode/decode,
// one handler function per route.
package meshhttp

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/meshcore/mesh/internal/ask"
	"github.com/meshcore/mesh/internal/auth"
	"github.com/meshcore/mesh/internal/invite"
	"github.com/meshcore/mesh/internal/logger"
	"github.com/meshcore/mesh/internal/manifest"
	"github.com/meshcore/mesh/internal/meshtypes"
	"github.com/meshcore/mesh/internal/metrics"
	"github.com/meshcore/mesh/internal/queue"
)

// Notifier is called whenever a message is accepted onto the queue, so the
// agent runtime can wire inbox signaling without the HTTP layer knowing
// about it (§4.13 step 4).
type Notifier func(meshtypes.IncomingMessage)

// Server wires the C9 auth pipeline together with the queue, ask registry,
// and manifest store to answer the message and bootstrap surfaces.
type Server struct {
	AgentName string
	Mesh      string

	Auth  *auth.Pipeline
	Queue *queue.Queue
	Asks  *ask.Registry

	ManifestStore *manifest.Store
	RootPubKey    ed25519.PublicKey // nil until trust is bootstrapped
	NodePubKey    ed25519.PublicKey // this host's own keypair, presented during join

	StrictInvites bool

	SyncIntervalSeconds int
	ManifestURLTemplate string
	HeadURL             string

	Log logger.Logger

	OnMessage Notifier
	OnAsk     Notifier

	mu           sync.Mutex
	consumedJTIs map[string]struct{}
}

// Mux builds the HTTP handler serving both surfaces.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/mesh/msg", s.handleMsg)
	mux.HandleFunc("/mesh/ask", s.handleAsk)
	mux.HandleFunc("/mesh/response", s.handleResponse)
	mux.HandleFunc("/mesh/health", s.handleHealth)
	mux.HandleFunc("/mesh/bootstrap/join", s.handleBootstrapJoin)
	mux.HandleFunc("/mesh/bootstrap/head", s.handleBootstrapHead)
	mux.HandleFunc("/mesh/bootstrap/manifest/", s.handleBootstrapManifest)
	return mux
}

func (s *Server) log() logger.Logger {
	if s.Log == nil {
		return logger.GetDefaultLogger()
	}
	return s.Log
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleMsg implements POST /mesh/msg.
func (s *Server) handleMsg(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if f := s.Auth.CheckBearer(r); f != nil {
		auth.WriteFailure(w, f)
		return
	}

	authenticated, f := s.Auth.Validate(r)
	if f != nil {
		metrics.Global().RecordMessage(false, f.Code == "replay", time.Since(start))
		metrics.MessagesProcessed.WithLabelValues("deliver", "rejected").Inc()
		s.log().Warn("meshhttp: rejected deliver", logger.Mesh(s.Mesh), logger.String("code", f.Code))
		auth.WriteFailure(w, f)
		return
	}

	msg := authenticated.Message
	if msg.To != s.AgentName {
		metrics.MessagesProcessed.WithLabelValues("deliver", "rejected").Inc()
		s.log().Warn("meshhttp: deliver addressed to unknown recipient", logger.MessageID(msg.ID), logger.Peer(msg.To))
		http.NotFound(w, r)
		return
	}

	incoming := meshtypes.IncomingMessage{
		ID: msg.ID, From: msg.From, Payload: msg.Payload,
		Timestamp: msg.Timestamp, Type: meshtypes.MessageTypeDeliver,
	}
	s.Queue.Enqueue(incoming)
	if s.OnMessage != nil {
		s.OnMessage(incoming)
	}

	metrics.Global().RecordMessage(true, false, time.Since(start))
	metrics.MessagesProcessed.WithLabelValues("deliver", "accepted").Inc()
	metrics.QueueDepth.WithLabelValues(s.AgentName).Set(float64(s.Queue.Len()))
	s.log().Debug("meshhttp: accepted deliver", logger.MessageID(msg.ID), logger.Peer(msg.From))

	writeJSON(w, http.StatusOK, map[string]interface{}{"delivered": true, "messageId": msg.ID})
}

// handleAsk implements POST /mesh/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if f := s.Auth.CheckBearer(r); f != nil {
		auth.WriteFailure(w, f)
		return
	}

	authenticated, f := s.Auth.Validate(r)
	if f != nil {
		metrics.Global().RecordMessage(false, f.Code == "replay", time.Since(start))
		metrics.MessagesProcessed.WithLabelValues("ask", "rejected").Inc()
		s.log().Warn("meshhttp: rejected ask", logger.Mesh(s.Mesh), logger.String("code", f.Code))
		auth.WriteFailure(w, f)
		return
	}

	msg := authenticated.Message
	if msg.To != s.AgentName {
		metrics.MessagesProcessed.WithLabelValues("ask", "rejected").Inc()
		s.log().Warn("meshhttp: ask addressed to unknown recipient", logger.MessageID(msg.ID), logger.Peer(msg.To))
		http.NotFound(w, r)
		return
	}

	incoming := meshtypes.IncomingMessage{
		ID: msg.ID, From: msg.From, Payload: msg.Payload,
		Timestamp: msg.Timestamp, Type: meshtypes.MessageTypeAsk,
	}
	s.Queue.Enqueue(incoming)
	if s.OnAsk != nil {
		s.OnAsk(incoming)
	}

	metrics.Global().RecordMessage(true, false, time.Since(start))
	metrics.MessagesProcessed.WithLabelValues("ask", "accepted").Inc()
	metrics.QueueDepth.WithLabelValues(s.AgentName).Set(float64(s.Queue.Len()))
	s.log().Debug("meshhttp: accepted ask", logger.MessageID(msg.ID), logger.Peer(msg.From))

	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "messageId": msg.ID})
}

// handleResponse implements POST /mesh/response: a late reply is never an
// error, only a false `resolved` flag.
func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	if f := s.Auth.CheckBearer(r); f != nil {
		auth.WriteFailure(w, f)
		return
	}

	authenticated, f := s.Auth.Validate(r)
	if f != nil {
		auth.WriteFailure(w, f)
		return
	}

	msg := authenticated.Message
	if msg.ReplyTo == "" {
		auth.WriteFailure(w, &auth.Failure{Status: http.StatusBadRequest, Code: "malformed", Detail: "replyTo is required"})
		return
	}

	resolved := s.Asks.Resolve(msg.ReplyTo, msg.Payload)
	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "resolved": resolved})
}

// handleHealth implements GET /mesh/health (unauthenticated).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent":     s.AgentName,
		"status":    "online",
		"timestamp": time.Now().UnixMilli(),
	})
}

type joinRequest struct {
	Token      string `json:"token"`
	NodePubKey string `json:"nodePubKey"`
}

// handleBootstrapJoin implements POST /mesh/bootstrap/join.
func (s *Server) handleBootstrapJoin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metrics.BootstrapJoinsInitiated.WithLabelValues("responder").Inc()

	fail := func(status int, reason string) {
		metrics.BootstrapJoinsFailed.WithLabelValues(reason).Inc()
		s.log().Warn("meshhttp: bootstrap join rejected", logger.Mesh(s.Mesh), logger.String("reason", reason))
		writeJSON(w, status, map[string]string{"error": reason})
	}

	if s.RootPubKey == nil {
		fail(http.StatusServiceUnavailable, "no_root_key")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		fail(http.StatusBadRequest, "malformed")
		return
	}

	payload, err := invite.Decode(s.RootPubKey, req.Token)
	if err != nil {
		fail(http.StatusUnauthorized, "invalid_signature")
		return
	}

	if payload.Mesh != s.Mesh {
		fail(http.StatusForbidden, "mesh_mismatch")
		return
	}
	if payload.NodePubKey != req.NodePubKey {
		fail(http.StatusForbidden, "node_pubkey_mismatch")
		return
	}

	now := time.Now().UnixMilli()
	const skewMillis = 60_000
	if now+skewMillis < payload.NBF || now-skewMillis > payload.EXP {
		fail(http.StatusForbidden, "expired")
		return
	}

	env := s.ManifestStore.Load()
	var manifestPayload *meshtypes.ManifestPayload
	if env != nil {
		manifestPayload, err = manifest.Verify(s.RootPubKey, s.Mesh, env)
		if err != nil {
			fail(http.StatusServiceUnavailable, "manifest_unverifiable")
			return
		}
	}

	if payload.MinManifestVersion > 0 {
		if manifestPayload == nil || manifestPayload.Version < payload.MinManifestVersion {
			fail(http.StatusPreconditionFailed, "manifest_behind")
			return
		}
	}

	if s.StrictInvites {
		s.mu.Lock()
		if s.consumedJTIs == nil {
			s.consumedJTIs = make(map[string]struct{})
		}
		if _, used := s.consumedJTIs[payload.JTI]; used {
			s.mu.Unlock()
			fail(http.StatusConflict, "jti_consumed")
			return
		}
		s.consumedJTIs[payload.JTI] = struct{}{}
		s.mu.Unlock()
	}

	if env == nil {
		fail(http.StatusServiceUnavailable, "no_manifest")
		return
	}

	metrics.BootstrapJoinsCompleted.WithLabelValues("ok").Inc()
	metrics.BootstrapJoinDuration.WithLabelValues("join").Observe(time.Since(start).Seconds())
	metrics.Global().RecordJoin(true)
	s.log().Info("meshhttp: bootstrap join completed", logger.Mesh(s.Mesh), logger.Peer(payload.Agent))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"mesh":     s.Mesh,
		"agent":    payload.Agent,
		"now":      now,
		"manifest": env,
		"sync": map[string]interface{}{
			"headUrl":             s.HeadURL,
			"manifestUrlTemplate": s.ManifestURLTemplate,
			"intervalSeconds":     s.SyncIntervalSeconds,
		},
	})
}

// handleBootstrapHead implements GET /mesh/bootstrap/head.
func (s *Server) handleBootstrapHead(w http.ResponseWriter, r *http.Request) {
	if f := s.Auth.CheckBearer(r); f != nil {
		auth.WriteFailure(w, f)
		return
	}

	env := s.ManifestStore.Load()
	if env == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no_manifest"})
		return
	}

	var payload meshtypes.ManifestPayload
	if err := json.Unmarshal(mustDecodePayload(env.Payload), &payload); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "manifest_unreadable"})
		return
	}

	sum := sha256.Sum256([]byte(env.Payload))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mesh":         payload.Mesh,
		"version":      payload.Version,
		"manifestHash": fmt.Sprintf("sha256:%x", sum),
		"issuedAt":     payload.IssuedAt,
	})
}

// handleBootstrapManifest implements GET /mesh/bootstrap/manifest/:version.
func (s *Server) handleBootstrapManifest(w http.ResponseWriter, r *http.Request) {
	if f := s.Auth.CheckBearer(r); f != nil {
		auth.WriteFailure(w, f)
		return
	}

	version := r.URL.Path[len("/mesh/bootstrap/manifest/"):]

	env := s.ManifestStore.Load()
	if env == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no_manifest"})
		return
	}

	if version == "latest" {
		writeJSON(w, http.StatusOK, env)
		return
	}

	var payload meshtypes.ManifestPayload
	if err := json.Unmarshal(mustDecodePayload(env.Payload), &payload); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "manifest_unreadable"})
		return
	}

	if fmt.Sprintf("%d", payload.Version) != version {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func mustDecodePayload(b64 string) []byte {
	data, err := base64.RawURLEncoding.DecodeString(b64)
	if err != nil {
		return nil
	}
	return data
}
