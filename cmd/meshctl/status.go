package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/agentruntime"
	"github.com/meshcore/mesh/internal/peerclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether this agent's daemon is running and reachable",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	PIDFileAgent bool   `json:"pidFileAlive"`
	PID          int    `json:"pid,omitempty"`
	ListenerURL  string `json:"listenerUrl"`
	Reachable    bool   `json:"reachable"`
	AgentName    string `json:"agentName,omitempty"`
	HealthStatus string `json:"healthStatus,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	report := statusReport{
		ListenerURL: fmt.Sprintf("http://%s:%d", cfg.Agent.Host, cfg.Agent.Port),
	}

	if pid, err := agentruntime.ReadPID(cfg.Daemon.PIDFile); err == nil {
		report.PID = pid
		if proc, err := findProcess(pid); err == nil {
			report.PIDFileAgent = proc.Signal(syscall.Signal(0)) == nil
		}
	}

	client := peerclient.New("")
	online, health := client.Probe(report.ListenerURL)
	report.Reachable = online
	if health != nil {
		report.AgentName = health.Agent
		report.HealthStatus = health.Status
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
