package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8317 {
		t.Fatalf("Port = %d, want 8317", cfg.Port)
	}
	if cfg.GatewayTimeoutMs != 12000 {
		t.Fatalf("GatewayTimeoutMs = %d, want 12000", cfg.GatewayTimeoutMs)
	}
	if cfg.GatewayURL == "" || cfg.WorkspaceDir == "" || cfg.HistoryDir == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_ParsesYAMLAndFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: 9000
workspace-dir: /tmp/openclaw-test
gateway-timeout-ms: 3000
history-retention-days: 90
debug: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9000 || cfg.GatewayTimeoutMs != 3000 || !cfg.Debug {
		t.Fatalf("parsed config = %+v", cfg)
	}
	if cfg.HistoryRetentionDays != 90 {
		t.Fatalf("HistoryRetentionDays = %d, want 90", cfg.HistoryRetentionDays)
	}
	if cfg.HistoryDir != filepath.Join("/tmp/openclaw-test", "history") {
		t.Fatalf("HistoryDir = %q, want derived from workspace-dir", cfg.HistoryDir)
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [not a port"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func writeWorkspace(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "openclaw.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestWorkspaceFile_Load(t *testing.T) {
	dir := t.TempDir()
	writeWorkspace(t, dir, `{
		"models": {"default":"anthropic/claude-opus-4","fallbacks":["anthropic/claude-sonnet-4"]},
		"agents": [
			{"id":"main","name":"Main"},
			{"id":"research","model":"openai/gpt-4o"},
			{"name":"no id, skipped"}
		],
		"unrelated": {"section": true}
	}`)

	provider := NewWorkspaceFile(dir)
	defer provider.Close()

	workspace, err := provider.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if workspace.DefaultModel != "anthropic/claude-opus-4" {
		t.Fatalf("DefaultModel = %q", workspace.DefaultModel)
	}
	if len(workspace.Agents) != 2 {
		t.Fatalf("len(Agents) = %d, want 2", len(workspace.Agents))
	}

	ids := workspace.AgentIDs()
	if len(ids) != 2 || ids[0] != "main" || ids[1] != "research" {
		t.Fatalf("AgentIDs() = %v", ids)
	}

	models := workspace.AgentModels()
	if len(models) != 1 || models["research"] != "openai/gpt-4o" {
		t.Fatalf("AgentModels() = %v", models)
	}
}

func TestWorkspaceFile_ReloadsAfterChange(t *testing.T) {
	dir := t.TempDir()
	writeWorkspace(t, dir, `{"agents":[{"id":"main"}]}`)

	provider := NewWorkspaceFile(dir)
	defer provider.Close()

	workspace, err := provider.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(workspace.Agents) != 1 {
		t.Fatalf("len(Agents) = %d, want 1", len(workspace.Agents))
	}

	writeWorkspace(t, dir, `{"agents":[{"id":"main"},{"id":"research"}]}`)

	// The watcher invalidates asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		workspace, err = provider.Load()
		if err != nil {
			t.Fatalf("Load() after change error = %v", err)
		}
		if len(workspace.Agents) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache never invalidated, agents = %+v", workspace.Agents)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWorkspaceFile_MissingFile(t *testing.T) {
	provider := NewWorkspaceFile(t.TempDir())
	defer provider.Close()

	if _, err := provider.Load(); err == nil {
		t.Fatal("expected error for missing openclaw.json")
	}
}
