package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/keystore"
	"github.com/meshcore/mesh/internal/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect this agent's locally stored manifest",
}

var manifestShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current manifest payload, verified against the pinned root key",
	RunE:  runManifestShow,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.AddCommand(manifestShowCmd)
}

func runManifestShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := manifest.Open(filepath.Join(cfg.KeyStore.Directory, "manifest.json"))
	if err != nil {
		return fmt.Errorf("open manifest store: %w", err)
	}

	env := store.Load()
	if env == nil {
		return fmt.Errorf("no manifest stored for this agent yet")
	}

	admin, err := keystore.Open(cfg.KeyStore.AdminDirectory)
	if err != nil {
		return err
	}

	var payload interface{}
	if admin.Exists("root") {
		rootPub, err := admin.LoadPublicOnly("root")
		if err != nil {
			return fmt.Errorf("load root public key: %w", err)
		}
		verified, err := manifest.Verify(rootPub, cfg.Mesh, env)
		if err != nil {
			return fmt.Errorf("verify manifest: %w", err)
		}
		payload = verified
	} else {
		fmt.Fprintln(os.Stderr, "warning: no pinned root public key, printing envelope unverified")
		payload = env
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
