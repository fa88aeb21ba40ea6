package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// EnvFile, if non-empty, is loaded into the process environment before
	// reading any MESH_* override. Admin/CLI convenience only; the agent
	// runtime never depends on it for correctness.
	EnvFile string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
	}
}

// Load loads configuration with automatic environment detection
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.EnvFile != "" {
		_ = godotenv.Load(options.EnvFile)
	}

	// Determine environment
	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	// Try to load environment-specific config file
	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if os.IsNotExist(err) {
		// Fall back to default config file
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if os.IsNotExist(err) {
			// Fall back to config.yaml
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if os.IsNotExist(err) {
				// No file at all: start from an empty config
				cfg, err = &Config{}, nil
			}
		}
	}
	if err != nil {
		return nil, err
	}

	// Set environment
	if cfg.Environment == "" {
		cfg.Environment = env
	}
	SetDefaults(cfg)

	// Substitute environment variables
	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	// Override with environment variables (highest priority)
	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

// loadConfigFile parses a single config file without applying defaults, so
// Load can fill in the detected environment first. A missing file yields an
// error for which os.IsNotExist reports true.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

// applyEnvironmentOverrides overrides config with environment variables
func applyEnvironmentOverrides(cfg *Config) {
	if name := os.Getenv("MESH_AGENT_NAME"); name != "" {
		cfg.Agent.Name = name
	}
	if host := os.Getenv("MESH_AGENT_HOST"); host != "" {
		cfg.Agent.Host = host
	}

	if ksDir := os.Getenv("MESH_KEYSTORE_DIR"); ksDir != "" {
		cfg.KeyStore.Directory = ksDir
	}

	if cfg.Logging != nil {
		if logLevel := os.Getenv("MESH_LOG_LEVEL"); logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat := os.Getenv("MESH_LOG_FORMAT"); logFormat != "" {
			cfg.Logging.Format = logFormat
		}
	}

	if cfg.Metrics != nil {
		if os.Getenv("MESH_METRICS_ENABLED") == "true" {
			cfg.Metrics.Enabled = true
		}
		if os.Getenv("MESH_METRICS_ENABLED") == "false" {
			cfg.Metrics.Enabled = false
		}
	}
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
