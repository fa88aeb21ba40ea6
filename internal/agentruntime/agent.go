// Package agentruntime implements the agent process lifecycle (C13) from
// config and keys the caller has already loaded: start the HTTP listener,
// auto-register in the local peer map, and, when a Processor is set and the
// poll interval is positive, run a poll loop draining the persisted queue to
// that external batch processor. The runtime does not set the listener's
// OnMessage or OnAsk notifiers. Grounded on the teacher's
// examples/health_server.go for signal-driven shutdown and on
// pkg/agent/transport/http/server.go for the bare net/http listener.
package agentruntime

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/ask"
	"github.com/meshcore/mesh/internal/auth"
	"github.com/meshcore/mesh/internal/logger"
	"github.com/meshcore/mesh/internal/manifest"
	"github.com/meshcore/mesh/internal/meshhttp"
	"github.com/meshcore/mesh/internal/meshtypes"
	"github.com/meshcore/mesh/internal/noncecache"
	"github.com/meshcore/mesh/internal/peerclient"
	"github.com/meshcore/mesh/internal/peerregistry"
	"github.com/meshcore/mesh/internal/queue"
	"github.com/meshcore/mesh/internal/urlnorm"
)

// State is one node of the daemon state machine (§4.13, §9): Init →
// Listening → (Polling ↔ Processing) → Stopping → Stopped.
type State string

const (
	StateInit       State = "init"
	StateListening  State = "listening"
	StatePolling    State = "polling"
	StateProcessing State = "processing"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
)

// BatchProcessor hands a drained batch of queued messages to external
// processing logic; agentruntime does not interpret message payloads.
type BatchProcessor func(ctx context.Context, batch []meshtypes.IncomingMessage) error

// Agent owns one mesh agent's listener, queue, ask registry, and (in daemon
// mode) poll loop.
type Agent struct {
	Config *config.Config
	Secret string

	RootPubKey ed25519.PublicKey
	NodePub    ed25519.PublicKey
	NodePriv   ed25519.PrivateKey

	ManifestStore *manifest.Store
	PeerRegistry  *peerregistry.Registry

	Queue *queue.Queue
	Asks  *ask.Registry

	Processor BatchProcessor

	Log logger.Logger

	mu       sync.Mutex
	state    State
	listener net.Listener
	server   *http.Server

	stopPoll chan struct{}
	pollDone chan struct{}
	polling  sync.Mutex // re-entrancy guard for daemon batches

	stopSync chan struct{}
	syncDone chan struct{}
}

// New wires an Agent from its configuration and secrets. The message/
// bootstrap HTTP surfaces, queue, and ask registry are constructed here so
// callers only need to supply config and key material.
func New(cfg *config.Config, secret string, rootPub ed25519.PublicKey, nodePub ed25519.PublicKey, nodePriv ed25519.PrivateKey, manifestStore *manifest.Store, peerRegistry *peerregistry.Registry, log logger.Logger) *Agent {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Agent{
		Config:        cfg,
		Secret:        secret,
		RootPubKey:    rootPub,
		NodePub:       nodePub,
		NodePriv:      nodePriv,
		ManifestStore: manifestStore,
		PeerRegistry:  peerRegistry,
		Queue:         queue.New(cfg.KeyStore.Directory+"/queue.json", log),
		Asks:          ask.New(),
		Log:           log,
		state:         StateInit,
	}
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// State reports the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start opens the listener, auto-registers this agent in the local peer
// map, and begins serving the message and bootstrap surfaces. It returns
// once the listener is accepting connections; serving happens in the
// background.
func (a *Agent) Start(ctx context.Context) (actualPort int, err error) {
	addr := fmt.Sprintf("%s:%d", a.Config.Agent.Host, a.Config.Agent.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("agentruntime: listen on %s: %w", addr, err)
	}
	a.listener = ln

	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		ln.Close()
		return 0, fmt.Errorf("agentruntime: unexpected listener address type")
	}
	actualPort = tcpAddr.Port

	scheme := "http"
	if a.Config.TLS != nil {
		scheme = "https"
	}
	selfURL, err := urlnorm.Normalize(fmt.Sprintf("%s://%s:%d", scheme, a.Config.Agent.Host, actualPort))
	if err != nil {
		ln.Close()
		return 0, fmt.Errorf("agentruntime: normalize self URL: %w", err)
	}

	if a.PeerRegistry != nil {
		if _, err := a.PeerRegistry.Register(meshtypes.Peer{Name: a.Config.Agent.Name, URL: selfURL}); err != nil {
			a.Log.Warn("agentruntime: auto-register failed", logger.Mesh(a.Config.Mesh), logger.Peer(a.Config.Agent.Name), logger.Error(err))
		}
	}

	httpServer := &meshhttp.Server{
		AgentName: a.Config.Agent.Name,
		Mesh:      a.Config.Mesh,
		Auth: &auth.Pipeline{
			Secret:              a.Secret,
			ReplayWindowSeconds: a.Config.Security.ReplayWindowSeconds,
			MaxMessageSizeBytes: a.Config.Security.MaxMessageSizeBytes,
			Nonces:              noncecache.New(time.Duration(a.Config.Security.ReplayWindowSeconds)*time.Second, time.Minute),
		},
		Queue:               a.Queue,
		Asks:                a.Asks,
		ManifestStore:       a.ManifestStore,
		RootPubKey:          a.RootPubKey,
		NodePubKey:          a.NodePub,
		StrictInvites:       a.Config.Security.StrictInvites,
		HeadURL:             selfURL + "/mesh/bootstrap/head",
		ManifestURLTemplate: selfURL + "/mesh/bootstrap/manifest/{version}",
		SyncIntervalSeconds: a.Config.Bootstrap.SyncIntervalSeconds,
		Log:                 a.Log,
	}

	a.server = &http.Server{Handler: httpServer.Mux()}
	go func() {
		if err := a.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.Log.Error("agentruntime: listener exited unexpectedly", logger.Error(err))
		}
	}()

	a.setState(StateListening)

	if a.Config.Daemon.PollInterval > 0 && a.Processor != nil {
		a.startPollLoop(a.Config.Daemon.PollInterval)
	}

	if a.Config.Bootstrap.HeadURL != "" && a.Config.Bootstrap.ManifestURLTemplate != "" {
		interval := time.Duration(a.Config.Bootstrap.SyncIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 300 * time.Second
		}
		a.startManifestSyncLoop(interval)
	}

	return actualPort, nil
}

// startManifestSyncLoop periodically polls the seed peer's bootstrap head
// for a newer manifest version and, when one exists, fetches and verifies it
// before replacing the local manifest store (§1, "existing hosts poll for
// manifest updates").
func (a *Agent) startManifestSyncLoop(interval time.Duration) {
	a.stopSync = make(chan struct{})
	a.syncDone = make(chan struct{})

	client := peerclient.New(a.Secret)

	go func() {
		defer close(a.syncDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.runManifestSyncCycle(client)
			case <-a.stopSync:
				return
			}
		}
	}()
}

func (a *Agent) runManifestSyncCycle(client *peerclient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	head, err := client.FetchHead(ctx, a.Config.Bootstrap.HeadURL)
	if err != nil {
		a.Log.Warn("agentruntime: manifest sync head fetch failed", logger.Mesh(a.Config.Mesh), logger.Error(err))
		return
	}

	localVersion := 0
	if env := a.ManifestStore.Load(); env != nil {
		if payload, err := manifest.Verify(a.RootPubKey, a.Config.Mesh, env); err == nil {
			localVersion = payload.Version
		}
	}
	if head.Version <= localVersion {
		return
	}

	env, err := client.FetchManifest(ctx, a.Config.Bootstrap.ManifestURLTemplate, fmt.Sprintf("%d", head.Version))
	if err != nil {
		a.Log.Warn("agentruntime: manifest sync fetch failed", logger.Mesh(a.Config.Mesh), logger.Error(err))
		return
	}

	payload, err := manifest.Verify(a.RootPubKey, a.Config.Mesh, env)
	if err != nil {
		a.Log.Warn("agentruntime: manifest sync fetched an unverifiable manifest", logger.Mesh(a.Config.Mesh), logger.Error(err))
		return
	}

	if err := a.ManifestStore.Save(env); err != nil {
		a.Log.Warn("agentruntime: manifest sync failed to persist manifest", logger.Mesh(a.Config.Mesh), logger.Error(err))
		return
	}

	a.Log.Info("agentruntime: manifest sync applied newer manifest", logger.Mesh(a.Config.Mesh), logger.String("version", fmt.Sprintf("%d", payload.Version)))
}

// startPollLoop runs the daemon's poll-drain-process cycle until Stop is called.
func (a *Agent) startPollLoop(interval time.Duration) {
	a.stopPoll = make(chan struct{})
	a.pollDone = make(chan struct{})

	go func() {
		defer close(a.pollDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.runPollCycle()
			case <-a.stopPoll:
				return
			}
		}
	}()
}

func (a *Agent) runPollCycle() {
	if !a.polling.TryLock() {
		return // previous batch still processing; re-entrancy guard
	}
	defer a.polling.Unlock()

	a.setState(StatePolling)
	batch := a.Queue.Drain()
	if len(batch) == 0 {
		a.setState(StateListening)
		return
	}

	a.setState(StateProcessing)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Processor(ctx, batch); err != nil {
		a.Log.Warn("agentruntime: batch processing failed", logger.Error(err))
	}
	a.setState(StateListening)
}

// Stop gracefully shuts down the listener, stops the poll loop, and
// destroys the ask registry, rejecting every pending ask with a terminal
// error (§4.13 shutdown, §5 cancellation).
func (a *Agent) Stop(ctx context.Context) error {
	a.setState(StateStopping)

	if a.stopPoll != nil {
		close(a.stopPoll)
		select {
		case <-a.pollDone:
		case <-ctx.Done():
		}
	}

	if a.stopSync != nil {
		close(a.stopSync)
		select {
		case <-a.syncDone:
		case <-ctx.Done():
		}
	}

	var shutdownErr error
	if a.server != nil {
		shutdownErr = a.server.Shutdown(ctx)
	}

	a.Asks.Destroy()
	a.setState(StateStopped)

	return shutdownErr
}
