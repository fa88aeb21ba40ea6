// Package config provides configuration management for a mesh agent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the full on-disk configuration for one mesh agent.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Mesh        string          `yaml:"mesh" json:"mesh"`
	Agent       AgentConfig     `yaml:"agent" json:"agent"`
	Security    SecurityConfig  `yaml:"security" json:"security"`
	TLS         *TLSConfig      `yaml:"tls,omitempty" json:"tls,omitempty"`
	KeyStore    KeyStoreConfig  `yaml:"keystore" json:"keystore"`
	Peers       []PeerConfig    `yaml:"peers" json:"peers"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Daemon      DaemonConfig    `yaml:"daemon" json:"daemon"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap" json:"bootstrap"`
}

// BootstrapConfig locates the seed peer this agent polls for manifest
// updates after joining, as advertised in that peer's bootstrap join
// response (§1: "existing hosts poll for manifest updates").
type BootstrapConfig struct {
	SeedURL             string `yaml:"seed_url" json:"seed_url"`
	HeadURL             string `yaml:"head_url" json:"head_url"`
	ManifestURLTemplate string `yaml:"manifest_url_template" json:"manifest_url_template"`
	SyncIntervalSeconds int    `yaml:"sync_interval_seconds" json:"sync_interval_seconds"`
}

// AgentConfig identifies this agent and its listener.
type AgentConfig struct {
	Name string `yaml:"name" json:"name"`
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// SecurityConfig holds the mesh-wide replay and sizing parameters (manifest §security).
type SecurityConfig struct {
	ReplayWindowSeconds int           `yaml:"replay_window_seconds" json:"replay_window_seconds"`
	MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes" json:"max_message_size_bytes"`
	InviteTTL           time.Duration `yaml:"invite_ttl" json:"invite_ttl"`
	InviteMaxTTL        time.Duration `yaml:"invite_max_ttl" json:"invite_max_ttl"`
	StrictInvites       bool          `yaml:"strict_invites" json:"strict_invites"`
}

// TLSConfig names the certificate/key pair used by the mesh listener, if any.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
}

// KeyStoreConfig locates the per-mesh state root and the admin-only root key.
type KeyStoreConfig struct {
	Directory      string `yaml:"directory" json:"directory"`
	AdminDirectory string `yaml:"admin_directory" json:"admin_directory"`
}

// PeerConfig is the config-file representation of one mesh peer.
type PeerConfig struct {
	Name        string   `yaml:"name" json:"name"`
	URL         string   `yaml:"url" json:"url"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig represents Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// DaemonConfig configures the autonomous poll loop (C13).
type DaemonConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	PIDFile      string        `yaml:"pid_file" json:"pid_file"`
	StopTimeout  time.Duration `yaml:"stop_timeout" json:"stop_timeout"`
}

// LoadFromFile loads configuration from a YAML (or JSON) file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	SetDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing format from the extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetDefaults fills unset fields with the mesh's documented defaults.
func SetDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Security.ReplayWindowSeconds == 0 {
		cfg.Security.ReplayWindowSeconds = 60
	}
	if cfg.Security.MaxMessageSizeBytes == 0 {
		cfg.Security.MaxMessageSizeBytes = 1 << 20 // 1MiB
	}
	if cfg.Security.InviteTTL == 0 {
		cfg.Security.InviteTTL = 15 * time.Minute
	}
	if cfg.Security.InviteMaxTTL == 0 {
		cfg.Security.InviteMaxTTL = time.Hour
	}

	if cfg.KeyStore.Directory == "" {
		cfg.KeyStore.Directory = ".mesh/state"
	}
	if cfg.KeyStore.AdminDirectory == "" {
		cfg.KeyStore.AdminDirectory = ".mesh/admin"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = "127.0.0.1:9090"
	}

	if cfg.Daemon.PollInterval == 0 {
		cfg.Daemon.PollInterval = 5 * time.Second
	}
	if cfg.Daemon.StopTimeout == 0 {
		cfg.Daemon.StopTimeout = 10 * time.Second
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = ".mesh/agent.pid"
	}

	if cfg.Bootstrap.SyncIntervalSeconds == 0 {
		cfg.Bootstrap.SyncIntervalSeconds = 300
	}
}
