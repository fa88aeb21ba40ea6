package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/agentruntime"
	"github.com/meshcore/mesh/internal/keystore"
	"github.com/meshcore/mesh/internal/manifest"
	"github.com/meshcore/mesh/internal/peerregistry"
)

var startForeground bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start this agent's listener (no batch processor is set, so no daemon poll loop runs)",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&startForeground, "foreground", true, "block until an interrupt or termination signal is received")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	state, err := keystore.Open(cfg.KeyStore.Directory)
	if err != nil {
		return err
	}
	nodePub, nodePriv, err := state.Load("node")
	if err != nil {
		return fmt.Errorf("load node key: %w", err)
	}

	var rootPub ed25519.PublicKey
	if cfg.KeyStore.AdminDirectory != "" {
		admin, err := keystore.Open(cfg.KeyStore.AdminDirectory)
		if err == nil && admin.Exists("root") {
			rootPub, _ = admin.LoadPublicOnly("root")
		}
	}

	manifestStore, err := manifest.Open(filepath.Join(cfg.KeyStore.Directory, "manifest.json"))
	if err != nil {
		return fmt.Errorf("open manifest store: %w", err)
	}

	manifestPayload, err := manifestLoadPayload(rootPub, cfg.Mesh, manifestStore)
	if err != nil {
		return fmt.Errorf("verify manifest: %w", err)
	}
	secret := ""
	if manifestPayload != nil {
		secret = manifestPayload.Transport.MeshKey
	}

	peers := peerregistry.Open(filepath.Join(cfg.KeyStore.Directory, "peers.json"))

	agent := agentruntime.New(cfg, secret, rootPub, nodePub, nodePriv, manifestStore, peers, nil)

	port, err := agent.Start(context.Background())
	if err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	fmt.Printf("Agent %q listening on %s:%d\n", cfg.Agent.Name, cfg.Agent.Host, port)

	if err := agentruntime.WritePID(cfg.Daemon.PIDFile); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write pid file: %v\n", err)
	}

	if !startForeground {
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.StopTimeout)
	defer cancel()

	if err := agent.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
	}
	_ = agentruntime.RemovePID(cfg.Daemon.PIDFile)
	return nil
}
