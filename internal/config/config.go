// Package config loads the service configuration and the dashboard
// workspace description. Service settings come from a YAML file; the
// per-agent workspace config is a JSON file owned by the gateway's
// tooling and is re-read through a provider so handlers never touch
// process-global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the service-level configuration loaded from config.yaml.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port" json:"port"`

	// WorkspaceDir is the dashboard workspace root holding openclaw.json
	// and per-agent session transcripts.
	WorkspaceDir string `yaml:"workspace-dir" json:"workspace-dir"`

	// GatewayURL is the base URL of the local gateway RPC endpoint.
	GatewayURL string `yaml:"gateway-url" json:"gateway-url"`

	// GatewayTimeoutMs bounds a single gateway call.
	GatewayTimeoutMs int `yaml:"gateway-timeout-ms" json:"gateway-timeout-ms"`

	// PricingCatalogURL points at the remote per-token pricing catalog.
	// Empty disables the dynamic catalog; static rates still apply.
	PricingCatalogURL string `yaml:"pricing-catalog-url" json:"pricing-catalog-url"`

	// HistoryDir holds the snapshot database. Defaults under WorkspaceDir.
	HistoryDir string `yaml:"history-dir" json:"history-dir"`

	// HistoryRetentionDays prunes snapshots older than this. 0 keeps forever.
	HistoryRetentionDays int `yaml:"history-retention-days" json:"history-retention-days"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile routes logs to rotated files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir overrides the rotated log location.
	LogDir string `yaml:"log-dir" json:"log-dir"`
}

// Load reads the YAML config at path and applies defaults. A missing
// file is not an error; the defaults describe a local gateway setup.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8317
	}
	if c.WorkspaceDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.WorkspaceDir = filepath.Join(home, ".openclaw")
		} else {
			c.WorkspaceDir = ".openclaw"
		}
	}
	if c.GatewayURL == "" {
		c.GatewayURL = "http://127.0.0.1:18789"
	}
	if c.GatewayTimeoutMs <= 0 {
		c.GatewayTimeoutMs = 12000
	}
	if c.HistoryDir == "" {
		c.HistoryDir = filepath.Join(c.WorkspaceDir, "history")
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.WorkspaceDir, "logs")
	}
}
