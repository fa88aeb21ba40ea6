package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agent.yaml")

	content := `environment: production
mesh: office-mesh
agent:
  name: relay-1
  host: 0.0.0.0
  port: 7331
security:
  replay_window_seconds: 30
  max_message_size_bytes: 65536
keystore:
  directory: /var/lib/mesh/state
peers:
  - name: relay-2
    url: https://relay-2.example.com:7331
    tags: ["edge", "us-east"]
logging:
  level: debug
  format: text
  output: stderr
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "office-mesh", cfg.Mesh)
	assert.Equal(t, "relay-1", cfg.Agent.Name)
	assert.Equal(t, 7331, cfg.Agent.Port)
	assert.Equal(t, 30, cfg.Security.ReplayWindowSeconds)
	assert.Equal(t, int64(65536), cfg.Security.MaxMessageSizeBytes)
	assert.Equal(t, "/var/lib/mesh/state", cfg.KeyStore.Directory)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, "relay-2", cfg.Peers[0].Name)
	assert.Contains(t, cfg.Peers[0].Tags, "edge")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte(`agent:
  name: solo
  port: 9000
`), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 60, cfg.Security.ReplayWindowSeconds)
	assert.Equal(t, int64(1<<20), cfg.Security.MaxMessageSizeBytes)
	assert.Equal(t, 15*time.Minute, cfg.Security.InviteTTL)
	assert.Equal(t, time.Hour, cfg.Security.InviteMaxTTL)
	assert.Equal(t, ".mesh/state", cfg.KeyStore.Directory)
	assert.Equal(t, ".mesh/admin", cfg.KeyStore.AdminDirectory)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 5*time.Second, cfg.Daemon.PollInterval)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "out.yaml")
	jsonPath := filepath.Join(tmpDir, "out.json")

	cfg := &Config{
		Environment: "staging",
		Mesh:        "test-mesh",
		Agent:       AgentConfig{Name: "alpha", Host: "127.0.0.1", Port: 8080},
	}
	SetDefaults(cfg)

	require.NoError(t, SaveToFile(cfg, yamlPath))
	require.NoError(t, SaveToFile(cfg, jsonPath))

	fromYAML, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "alpha", fromYAML.Agent.Name)

	fromJSON, err := LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "alpha", fromJSON.Agent.Name)
}

func TestSetDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Security: SecurityConfig{
			ReplayWindowSeconds: 5,
			StrictInvites:       true,
		},
	}
	SetDefaults(cfg)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 5, cfg.Security.ReplayWindowSeconds)
	assert.True(t, cfg.Security.StrictInvites)
	// Unset fields still receive defaults.
	assert.Equal(t, int64(1<<20), cfg.Security.MaxMessageSizeBytes)
}
