package main

import (
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshcore/mesh/config"
	"github.com/meshcore/mesh/internal/agentruntime"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running agent daemon identified by its pid file",
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pid, err := agentruntime.ReadPID(cfg.Daemon.PIDFile)
	if err != nil {
		return fmt.Errorf("read pid file: %w", err)
	}

	proc, err := findProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}

	deadline := time.Now().Add(cfg.Daemon.StopTimeout)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			_ = agentruntime.RemovePID(cfg.Daemon.PIDFile)
			fmt.Printf("agent (pid %d) stopped\n", pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	fmt.Printf("agent (pid %d) did not exit within %s, sending SIGKILL\n", pid, cfg.Daemon.StopTimeout)
	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("force-kill process %d: %w", pid, err)
	}
	_ = agentruntime.RemovePID(cfg.Daemon.PIDFile)
	return nil
}
