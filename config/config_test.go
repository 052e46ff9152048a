package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.TimeoutSecs != 1000 {
		t.Errorf("expected TimeoutSecs=1000, got %d", cfg.Server.TimeoutSecs)
	}
	if cfg.Results.PageSize != 1000 {
		t.Errorf("expected PageSize=1000, got %d", cfg.Results.PageSize)
	}
	if cfg.Results.CanaryGraphs {
		t.Error("expected CanaryGraphs disabled by default")
	}
	if len(cfg.Modeling.Languages) != 2 {
		t.Errorf("expected 2 default languages, got %d", len(cfg.Modeling.Languages))
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "qlmodel.yaml")

	content := `
server:
  path: /opt/ql/query-server
  timeout_secs: 60
results:
  page_size: 50
  canary_graphs: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Path != "/opt/ql/query-server" {
		t.Errorf("expected server path override, got %q", cfg.Server.Path)
	}
	if cfg.Server.TimeoutSecs != 60 {
		t.Errorf("expected TimeoutSecs=60, got %d", cfg.Server.TimeoutSecs)
	}
	if cfg.Results.PageSize != 50 {
		t.Errorf("expected PageSize=50, got %d", cfg.Results.PageSize)
	}
	if !cfg.Results.CanaryGraphs {
		t.Error("expected CanaryGraphs=true from file")
	}
	// Untouched sections keep defaults.
	if len(cfg.Modeling.Languages) != 2 {
		t.Errorf("expected default languages preserved, got %v", cfg.Modeling.Languages)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	content := "server:\n  timeout_secs: 5\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "qlmodel.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.TimeoutSecs != 5 {
		t.Errorf("expected TimeoutSecs=5, got %d", cfg.Server.TimeoutSecs)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out.yaml")

	cfg := DefaultConfig()
	cfg.Results.PageSize = 7
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Results.PageSize != 7 {
		t.Errorf("expected PageSize=7 after round trip, got %d", loaded.Results.PageSize)
	}
}
