package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/keystore"
	"github.com/meshcore/mesh/internal/manifest"
	"github.com/meshcore/mesh/internal/meshtypes"
	"github.com/meshcore/mesh/internal/urlnorm"
)

var (
	joinSeedURL    string
	joinToken      string
	joinMesh       string
	joinName       string
	joinHost       string
	joinPort       int
	joinRootPubKey string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join an existing mesh using an invite token",
	Long: `join generates this host's node keypair (if not already present), presents
the invite token to a seed peer's bootstrap surface, verifies the returned
manifest against the pinned root public key, and persists local state.`,
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().StringVar(&joinSeedURL, "seed", "", "base URL of a peer already in the mesh (required)")
	joinCmd.Flags().StringVar(&joinToken, "token", "", "invite token issued by the mesh admin (required)")
	joinCmd.Flags().StringVar(&joinMesh, "mesh", "", "expected mesh name (required)")
	joinCmd.Flags().StringVar(&joinName, "name", "", "this agent's name within the mesh (required)")
	joinCmd.Flags().StringVar(&joinHost, "host", "0.0.0.0", "listener host")
	joinCmd.Flags().IntVar(&joinPort, "port", 8443, "listener port")
	joinCmd.Flags().StringVar(&joinRootPubKey, "root-pubkey", "", "base64 root public key pinned out-of-band (required)")
	_ = joinCmd.MarkFlagRequired("seed")
	_ = joinCmd.MarkFlagRequired("token")
	_ = joinCmd.MarkFlagRequired("mesh")
	_ = joinCmd.MarkFlagRequired("name")
	_ = joinCmd.MarkFlagRequired("root-pubkey")
}

func runJoin(cmd *cobra.Command, args []string) error {
	rootPubBytes, err := base64.StdEncoding.DecodeString(joinRootPubKey)
	if err != nil {
		return fmt.Errorf("decode root public key: %w", err)
	}
	rootPub := ed25519.PublicKey(rootPubBytes)

	stateDir := filepath.Join(configDir, "state")
	state, err := keystore.Open(stateDir)
	if err != nil {
		return err
	}

	var nodePub ed25519.PublicKey
	if state.Exists("node") {
		nodePub, _, err = state.Load("node")
	} else {
		nodePub, _, err = state.Generate("node")
	}
	if err != nil {
		return fmt.Errorf("node key: %w", err)
	}
	nodePubB64 := base64.StdEncoding.EncodeToString(nodePub)

	reqBody, err := json.Marshal(map[string]string{"token": joinToken, "nodePubKey": nodePubB64})
	if err != nil {
		return err
	}

	seedURL, err := urlnorm.Normalize(joinSeedURL)
	if err != nil {
		return fmt.Errorf("normalize --seed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		seedURL+"/mesh/bootstrap/join", strings.NewReader(string(reqBody)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("bootstrap join request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bootstrap join rejected: HTTP %d", resp.StatusCode)
	}

	var joinResp struct {
		OK       bool               `json:"ok"`
		Mesh     string             `json:"mesh"`
		Manifest meshtypes.Envelope `json:"manifest"`
		Sync     struct {
			HeadURL             string `json:"headUrl"`
			ManifestURLTemplate string `json:"manifestUrlTemplate"`
			IntervalSeconds     int    `json:"intervalSeconds"`
		} `json:"sync"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&joinResp); err != nil {
		return fmt.Errorf("decode join response: %w", err)
	}

	payload, err := manifest.Verify(rootPub, joinMesh, &joinResp.Manifest)
	if err != nil {
		return fmt.Errorf("verify manifest: %w", err)
	}

	admin, err := keystore.Open(filepath.Join(configDir, "admin"))
	if err != nil {
		return err
	}
	if err := admin.SavePublicOnly("root", rootPub); err != nil {
		return fmt.Errorf("pin root public key: %w", err)
	}

	manifestStore, err := manifest.Open(filepath.Join(stateDir, "manifest.json"))
	if err != nil {
		return err
	}
	if err := manifestStore.Save(&joinResp.Manifest); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}

	cfg := &config.Config{
		Mesh: joinMesh,
		Agent: config.AgentConfig{
			Name: joinName,
			Host: joinHost,
			Port: joinPort,
		},
		Security: config.SecurityConfig{
			ReplayWindowSeconds: payload.Security.ReplayWindowSeconds,
			MaxMessageSizeBytes: payload.Security.MaxMessageSizeBytes,
		},
		KeyStore: config.KeyStoreConfig{
			Directory:      stateDir,
			AdminDirectory: filepath.Join(configDir, "admin"),
		},
		Bootstrap: config.BootstrapConfig{
			SeedURL:             seedURL,
			HeadURL:             joinResp.Sync.HeadURL,
			ManifestURLTemplate: joinResp.Sync.ManifestURLTemplate,
			SyncIntervalSeconds: joinResp.Sync.IntervalSeconds,
		},
	}
	config.SetDefaults(cfg)
	if err := config.SaveToFile(cfg, filepath.Join(configDir, "config.yaml")); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Joined mesh %q as %q (manifest version %d)\n", payload.Mesh, joinName, payload.Version)
	return nil
}
