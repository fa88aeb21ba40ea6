package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/keystore"
	"github.com/meshcore/mesh/internal/manifest"
	"github.com/meshcore/mesh/internal/meshtypes"
)

var (
	initMesh string
	initName string
	initHost string
	initPort int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new mesh and this agent's local state",
	Long: `init creates the admin root keypair, this agent's node keypair, a default
config file, and a signed v1 manifest naming this agent as the sole member
of a brand new mesh.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initMesh, "mesh", "", "name of the mesh to create (required)")
	initCmd.Flags().StringVar(&initName, "name", "", "this agent's name within the mesh (required)")
	initCmd.Flags().StringVar(&initHost, "host", "0.0.0.0", "listener host")
	initCmd.Flags().IntVar(&initPort, "port", 8443, "listener port")
	_ = initCmd.MarkFlagRequired("mesh")
	_ = initCmd.MarkFlagRequired("name")
}

func runInit(cmd *cobra.Command, args []string) error {
	adminDir := filepath.Join(configDir, "admin")
	stateDir := filepath.Join(configDir, "state")

	admin, err := keystore.Open(adminDir)
	if err != nil {
		return err
	}
	rootPub, rootPriv, err := admin.Generate("root")
	if err != nil {
		return fmt.Errorf("generate root key: %w", err)
	}

	state, err := keystore.Open(stateDir)
	if err != nil {
		return err
	}
	_, _, err = state.Generate("node")
	if err != nil {
		return fmt.Errorf("generate node key: %w", err)
	}

	secret, err := randomSecret(32)
	if err != nil {
		return fmt.Errorf("generate transport secret: %w", err)
	}

	cfg := &config.Config{
		Mesh: initMesh,
		Agent: config.AgentConfig{
			Name: initName,
			Host: initHost,
			Port: initPort,
		},
		KeyStore: config.KeyStoreConfig{
			Directory:      stateDir,
			AdminDirectory: adminDir,
		},
	}
	config.SetDefaults(cfg)

	cfgPath := filepath.Join(configDir, "config.yaml")
	if err := config.SaveToFile(cfg, cfgPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	manifestStore, err := manifest.Open(filepath.Join(stateDir, "manifest.json"))
	if err != nil {
		return err
	}

	builder := &manifest.Builder{Mesh: initMesh, Priv: rootPriv, Pub: rootPub}
	agents := map[string]meshtypes.Peer{
		initName: {Name: initName, URL: fmt.Sprintf("http://%s:%d", initHost, initPort)},
	}
	env, err := builder.Build(1,
		meshtypes.SecurityParams{
			ReplayWindowSeconds: cfg.Security.ReplayWindowSeconds,
			MaxMessageSizeBytes: cfg.Security.MaxMessageSizeBytes,
		},
		meshtypes.Transport{MeshKey: secret},
		agents, meshtypes.Revocations{}, "")
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := manifestStore.Save(env); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	fmt.Printf("Initialized mesh %q with agent %q\n", initMesh, initName)
	fmt.Printf("  config:   %s\n", cfgPath)
	fmt.Printf("  state:    %s\n", stateDir)
	fmt.Printf("  admin:    %s (keep this safe; it holds the root signing key)\n", adminDir)
	return nil
}

func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
