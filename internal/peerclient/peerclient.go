// Package peerclient sends mesh messages to remote agents over HTTP and
// probes their health, grounded on the teacher's
// pkg/agent/transport/http HTTPTransport: a thin http.Client wrapper, JSON
// wire bodies, Bearer auth instead of custom X-SAGE headers.
package peerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meshcore/mesh/internal/mac"
	"github.com/meshcore/mesh/internal/meshtypes"
)

const healthProbeTimeout = 5 * time.Second

// RemoteFailure is returned when a peer answers with a non-2xx status.
type RemoteFailure struct {
	Status int
	Body   string
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("peerclient: remote returned %d: %s", e.Status, e.Body)
}

// Client sends signed mesh messages to one or more peers.
type Client struct {
	Secret     string
	HTTPClient *http.Client
}

// New creates a Client with the teacher's default 30s request timeout.
func New(secret string) *Client {
	return &Client{
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind identifies which message-surface route a send targets.
type Kind string

const (
	KindMsg      Kind = "msg"
	KindAsk      Kind = "ask"
	KindResponse Kind = "response"
)

// Send builds a fresh, signed mesh message and POSTs it to
// {peerURL}/mesh/{kind}.
func (c *Client) Send(ctx context.Context, peerURL string, kind Kind, from, to, msgType, payload, replyTo string) (*meshtypes.Message, error) {
	msg := meshtypes.Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Type:      meshtypes.MessageType(msgType),
		Payload:   payload,
		ReplyTo:   replyTo,
		Timestamp: time.Now().UnixMilli(),
		Nonce:     uuid.NewString(),
	}
	msg.MAC = mac.Sign([]byte(c.Secret), mac.Fields{
		ID: msg.ID, Type: string(msg.Type), Payload: msg.Payload,
		Timestamp: msg.Timestamp, Nonce: msg.Nonce,
	})

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("peerclient: marshal message: %w", err)
	}

	url := peerURL + "/mesh/" + string(kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("peerclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Secret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("peerclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("peerclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteFailure{Status: resp.StatusCode, Body: string(respBody)}
	}

	return &msg, nil
}

// HealthStatus is the decoded result of a health probe.
type HealthStatus struct {
	Agent     string `json:"agent"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Probe performs GET {peerURL}/mesh/health with a short deadline. Any
// failure — network error, timeout, non-2xx — is reported as "offline"
// rather than propagated as an error, matching the peer client's health
// semantics (§4.12).
func (c *Client) Probe(peerURL string) (online bool, status *HealthStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerURL+"/mesh/health", nil)
	if err != nil {
		return false, nil
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var h HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return false, nil
	}
	return true, &h
}

// HeadInfo is the decoded result of GET {peer}/mesh/bootstrap/head: the
// version and hash of the manifest a peer currently holds, without the
// manifest body itself (§1, "existing hosts poll for manifest updates").
type HeadInfo struct {
	Mesh         string `json:"mesh"`
	Version      int    `json:"version"`
	ManifestHash string `json:"manifestHash"`
	IssuedAt     string `json:"issuedAt"`
}

func (c *Client) authenticatedGet(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("peerclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Secret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("peerclient: request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &RemoteFailure{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// FetchHead performs GET headURL and decodes the manifest head a peer
// currently advertises, so a caller can decide whether to fetch the full
// manifest.
func (c *Client) FetchHead(ctx context.Context, headURL string) (*HeadInfo, error) {
	resp, err := c.authenticatedGet(ctx, headURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var head HeadInfo
	if err := json.NewDecoder(resp.Body).Decode(&head); err != nil {
		return nil, fmt.Errorf("peerclient: decode head: %w", err)
	}
	return &head, nil
}

// FetchManifest performs GET against manifestURLTemplate with its "{version}"
// placeholder substituted for version (or "latest"), returning the signed
// envelope. The caller is responsible for verifying it against the mesh's
// root public key before trusting its contents.
func (c *Client) FetchManifest(ctx context.Context, manifestURLTemplate, version string) (*meshtypes.Envelope, error) {
	url := strings.Replace(manifestURLTemplate, "{version}", version, 1)

	resp, err := c.authenticatedGet(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env meshtypes.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("peerclient: decode manifest: %w", err)
	}
	return &env, nil
}
