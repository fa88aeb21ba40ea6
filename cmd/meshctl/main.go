// Command meshctl is the lifecycle CLI for one mesh agent: init, invite,
// join, start, stop, status, and manifest show. Modeled on the teacher's
// cmd/sage-crypto main: one cobra root command, subcommands registered from
// their own files via init().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshctl",
	Short: "meshctl manages one agent's membership in a peer-to-peer message mesh",
	Long: `meshctl manages one agent's membership in a peer-to-peer message mesh.

It supports:
  - Initializing a new mesh or a new agent's local state
  - Issuing invite tokens for new hosts to join
  - Joining an existing mesh using an invite token
  - Starting and stopping the agent daemon
  - Inspecting agent status and the current manifest`,
}

var configDir string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".mesh", "directory holding this agent's config and state")
}
