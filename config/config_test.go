package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	yamlDoc := `
session_id: sess-123
max_artifact_size: 1024
persistence_path: ${SUBSTRATE_TEST_DIR}/out.db
agents:
  - name: reverse-agent
  - name: uppercase-agent
listen_addr: 127.0.0.1:8090
`
	dir := t.TempDir()
	t.Setenv("SUBSTRATE_TEST_DIR", dir)

	path := filepath.Join(dir, "session.yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SessionID != "sess-123" {
		t.Errorf("SessionID = %q, want sess-123", cfg.SessionID)
	}
	if cfg.MaxArtifactSize != 1024 {
		t.Errorf("MaxArtifactSize = %d, want 1024", cfg.MaxArtifactSize)
	}
	want := filepath.Join(dir, "out.db")
	if cfg.PersistencePath != want {
		t.Errorf("PersistencePath = %q, want %q", cfg.PersistencePath, want)
	}
	if len(cfg.Agents) != 2 || cfg.Agents[0].Name != "reverse-agent" || cfg.Agents[1].Name != "uppercase-agent" {
		t.Errorf("unexpected agents: %+v", cfg.Agents)
	}
	if cfg.ListenAddr != "127.0.0.1:8090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoadDefaultsPersistencePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.yaml")
	if err := os.WriteFile(path, []byte("session_id: bare\n"), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PersistencePath != DefaultPersistencePath {
		t.Errorf("PersistencePath = %q, want default %q", cfg.PersistencePath, DefaultPersistencePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
