package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/invite"
	"github.com/meshcore/mesh/internal/keystore"
	"github.com/meshcore/mesh/internal/meshtypes"
)

var (
	inviteAgent      string
	inviteNodePubKey string
	inviteTTL        time.Duration
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Issue a signed invite token for a new host to join this mesh",
	RunE:  runInvite,
}

func init() {
	rootCmd.AddCommand(inviteCmd)
	inviteCmd.Flags().StringVar(&inviteAgent, "agent", "", "name the new host will register as (required)")
	inviteCmd.Flags().StringVar(&inviteNodePubKey, "node-pubkey", "", "base64 Ed25519 public key generated on the new host (required)")
	inviteCmd.Flags().DurationVar(&inviteTTL, "ttl", 15*time.Minute, "invite lifetime")
	_ = inviteCmd.MarkFlagRequired("agent")
	_ = inviteCmd.MarkFlagRequired("node-pubkey")
}

func runInvite(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	admin, err := keystore.Open(cfg.KeyStore.AdminDirectory)
	if err != nil {
		return err
	}
	_, rootPriv, err := admin.Load("root")
	if err != nil {
		return fmt.Errorf("load root key: %w", err)
	}

	now := time.Now()
	token, err := invite.Encode(rootPriv, meshtypes.InvitePayload{
		SchemaVersion: 1,
		Mesh:          cfg.Mesh,
		Agent:         inviteAgent,
		NodePubKey:    inviteNodePubKey,
		JTI:           uuid.NewString(),
		IAT:           now.UnixMilli(),
		NBF:           now.Add(-time.Minute).UnixMilli(),
		EXP:           now.Add(inviteTTL).UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode invite: %w", err)
	}

	fmt.Println(token)
	return nil
}
